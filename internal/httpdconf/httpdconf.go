// Package httpdconf renders the web server's main configuration and one
// virtual-host block per route. Rendering is a pure function of its input:
// the same ports, paths and route list always produce byte-identical output,
// and route order in the output mirrors input order.
package httpdconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/webstackd/webstackd/internal/service"
)

// Input is the full snapshot the generator renders from.
type Input struct {
	ListenPort   int                  // web server's own port
	RuntimeDir   string               // script runtime installation directory
	RuntimePort  int                  // stack-wide FastCGI port
	DocumentRoot string               // default document root
	Routes       []service.VHostRoute // ordered; domains unique
}

// Render produces the complete configuration file content.
// It re-checks domain uniqueness defensively: the config layer owns the
// route set, but a duplicate ServerName would make the web server refuse
// the whole file.
func Render(in Input) (string, error) {
	if in.ListenPort <= 0 {
		return "", fmt.Errorf("invalid listen port %d", in.ListenPort)
	}
	if err := service.ValidateRoutes(in.Routes); err != nil {
		return "", fmt.Errorf("route validation: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Generated by webstackd. Do not edit; regenerated on every route change.\n\n")
	fmt.Fprintf(&b, "Listen %d\n", in.ListenPort)
	b.WriteString("ServerName localhost\n\n")

	for _, m := range []string{
		"mpm_event_module modules/mod_mpm_event.so",
		"authz_core_module modules/mod_authz_core.so",
		"dir_module modules/mod_dir.so",
		"mime_module modules/mod_mime.so",
		"log_config_module modules/mod_log_config.so",
		"proxy_module modules/mod_proxy.so",
		"proxy_fcgi_module modules/mod_proxy_fcgi.so",
		"rewrite_module modules/mod_rewrite.so",
	} {
		fmt.Fprintf(&b, "LoadModule %s\n", m)
	}
	b.WriteString("\nTypesConfig conf/mime.types\n")
	b.WriteString("DirectoryIndex index.php index.html\n\n")

	if in.RuntimeDir != "" {
		fmt.Fprintf(&b, "PHPIniDir %q\n", normalize(in.RuntimeDir))
	}
	writeHandler(&b, in.RuntimePort, "")
	b.WriteString("\n")

	fmt.Fprintf(&b, "DocumentRoot %q\n", normalize(in.DocumentRoot))
	writeDirectory(&b, in.DocumentRoot, "")

	for _, r := range in.Routes {
		b.WriteString("\n")
		if r.DisplayName != "" {
			fmt.Fprintf(&b, "# %s\n", r.DisplayName)
		}
		fmt.Fprintf(&b, "<VirtualHost *:%d>\n", in.ListenPort)
		fmt.Fprintf(&b, "    ServerName %s\n", r.Domain)
		fmt.Fprintf(&b, "    DocumentRoot %q\n", normalize(r.DocumentRoot))
		if r.RuntimePort != 0 && r.RuntimePort != in.RuntimePort {
			// per-route script runtime override
			writeHandler(&b, r.RuntimePort, "    ")
		}
		writeDirectory(&b, r.DocumentRoot, "    ")
		b.WriteString("</VirtualHost>\n")
	}
	return b.String(), nil
}

func writeHandler(b *strings.Builder, port int, indent string) {
	if port <= 0 {
		return
	}
	fmt.Fprintf(b, "%s<FilesMatch \\.php$>\n", indent)
	fmt.Fprintf(b, "%s    SetHandler \"proxy:fcgi://127.0.0.1:%d\"\n", indent, port)
	fmt.Fprintf(b, "%s</FilesMatch>\n", indent)
}

func writeDirectory(b *strings.Builder, root, indent string) {
	fmt.Fprintf(b, "%s<Directory %q>\n", indent, normalize(root))
	fmt.Fprintf(b, "%s    Options Indexes FollowSymLinks\n", indent)
	fmt.Fprintf(b, "%s    AllowOverride All\n", indent)
	fmt.Fprintf(b, "%s    Require all granted\n", indent)
	fmt.Fprintf(b, "%s</Directory>\n", indent)
}

// normalize converts filesystem separators to the forward slashes the web
// server expects on every platform.
func normalize(p string) string {
	return filepath.ToSlash(p)
}

// WriteFile renders the configuration and writes it to path, creating parent
// directories as needed. The write goes through a temp file and rename so a
// crashed write never leaves a half-written config for the web server.
func WriteFile(path string, in Input) error {
	content, err := Render(in)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".httpd-conf-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
