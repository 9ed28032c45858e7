package handler

import (
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/rest"

	"otakuverse/internal/svc"
)

func RegisterHandlers(server *rest.Server, serverCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			// --- Wallet Routes ---
			{
				Method:  http.MethodPost,
				Path:    "/wallet/connect",
				Handler: WalletConnectHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/wallet/disconnect",
				Handler: WalletDisconnectHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/wallet/status",
				Handler: WalletStatusHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/wallet/balance",
				Handler: WalletBalanceHandler(serverCtx),
			},
			// --- Transaction Routes ---
			{
				Method:  http.MethodPost,
				Path:    "/transaction/send",
				Handler: TransactionSendHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/transaction/:txid",
				Handler: TransactionStatusHandler(serverCtx),
			},
			// --- Playback / Reward Routes ---
			{
				Method:  http.MethodPost,
				Path:    "/playback/progress",
				Handler: PlaybackProgressHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/playback/ended",
				Handler: PlaybackEndedHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/reward/status",
				Handler: RewardStatusHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/reward/claim",
				Handler: RewardClaimHandler(serverCtx),
			},
		},
		rest.WithPrefix("/api/"),
		rest.WithTimeout(120000*time.Millisecond),
	)
}
