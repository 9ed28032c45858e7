package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/rest"
	"github.com/zeromicro/go-zero/rest/httpx"

	"otakuverse/internal/config"
	"otakuverse/internal/errs"
	"otakuverse/internal/handler"
	"otakuverse/internal/svc"
)

var configFile = flag.String("f", "etc/otakuverse.yaml", "the config file")

func main() {
	flag.Parse()

	var c config.Config
	conf.MustLoad(*configFile, &c)

	server := rest.MustNewServer(c.RestConf)
	defer server.Stop()

	httpx.SetErrorHandlerCtx(func(_ context.Context, err error) (int, any) {
		return errs.StatusCode(err), map[string]string{"error": errs.Message(err)}
	})
	httpx.SetErrorHandler(func(err error) (int, any) {
		return errs.StatusCode(err), map[string]string{"error": errs.Message(err)}
	})

	ctx := svc.NewServiceContext(c)
	handler.RegisterHandlers(server, ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("Starting server at %s:%d...\n", c.Host, c.Port)

	go func() {
		server.Start()
	}()

	<-quit
	fmt.Println("\nshutting down...")

	ctx.Stop()

	fmt.Println("server stopped")
}
