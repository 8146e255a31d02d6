// Command healthprobe is a lean sidecar that exposes /healthz and /readyz
// for load balancers, forwarding readiness checks to the chathub server.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

func main() {
	addr := flag.String("addr", ":8081", "listen address for the health sidecar")
	target := flag.String("target", "http://127.0.0.1:3001", "base URL of the chathub server")
	ver := flag.String("version", "dev", "version string to return")
	flag.Parse()

	client := &fasthttp.Client{
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}

	h := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/health", "/healthz":
			ctx.Response.Header.Set("Content-Type", "application/json")
			ctx.SetStatusCode(fasthttp.StatusOK)
			_, _ = ctx.WriteString(fmt.Sprintf("{\"status\":\"ok\",\"version\":\"%s\"}", *ver))
		case "/readyz":
			status, body, err := client.GetTimeout(nil, *target+"/readyz", 2*time.Second)
			ctx.Response.Header.Set("Content-Type", "application/json")
			if err != nil {
				ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
				_, _ = ctx.WriteString("{\"status\":\"unreachable\"}")
				return
			}
			ctx.SetStatusCode(status)
			_, _ = ctx.Write(body)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}

	fmt.Printf("healthprobe listening on %s (target %s)\n", *addr, *target)
	srv := &fasthttp.Server{
		Handler:            h,
		Name:               "chathub-healthprobe",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}
	if err := srv.ListenAndServe(*addr); err != nil {
		fmt.Printf("healthprobe exit: %v\n", err)
	}
}
