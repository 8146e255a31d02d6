package banner

import (
	"fmt"

	"chathub/pkg/config"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗██╗  ██╗██╗   ██╗██████╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██║  ██║██║   ██║██╔══██╗
██║     ███████║███████║   ██║   ███████║██║   ██║██████╔╝
██║     ██╔══██║██╔══██║   ██║   ██╔══██║██║   ██║██╔══██╗
╚██████╗██║  ██║██║  ██║   ██║   ██║  ██║╚██████╔╝██████╔╝
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚═╝  ╚═╝ ╚═════╝ ╚═════╝
`

// Print renders the startup banner with the effective runtime config.
func Print(eff config.Effective, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", eff.DBPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config:   %s\n", src)

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /ws - WebSocket endpoint (join, chat, typing, edits)")
	fmt.Println("POST /api/register - Create an account (JSON: username, password)")
	fmt.Println("POST /api/login - Verify credentials (JSON: username, password)")
	fmt.Println("GET  /api/messages?username=<u> - History visible to a user")
	fmt.Println("GET  /api/users - Online users")
	fmt.Println("GET  /docs - API documentation")

	fmt.Println("\n== Production? ================================================")
	if eff.Config != nil && eff.Config.Server.TLS.CertFile != "" && eff.Config.Server.TLS.KeyFile != "" {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}
	if eff.Config != nil && eff.Config.Security.Admin.Password == config.DefaultAdminPassword {
		fmt.Println("- Admin password: DEFAULT (set security.admin.password or CHATHUB_ADMIN_PASSWORD)")
	} else {
		fmt.Println("- Admin password: OK")
	}
	if eff.Config != nil && len(eff.Config.Security.CORS.AllowedOrigins) > 0 {
		fmt.Printf("- CORS: restricted (%d origins)\n", len(eff.Config.Security.CORS.AllowedOrigins))
	} else {
		fmt.Println("- CORS: open (all origins allowed)")
	}
	if eff.Config != nil && eff.Config.Maintenance.Enabled {
		cron := eff.Config.Maintenance.Cron
		if cron == "" {
			cron = "0 3 * * *"
		}
		fmt.Printf("- Maintenance: enabled (cron=%s)\n", cron)
	} else {
		fmt.Println("- Maintenance: disabled")
	}

	fmt.Println("\n== Logs: ======================================================")
}
