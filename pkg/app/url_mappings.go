package app

import (
	"github.com/osvaldoandrade/nftminter/internal/controllers"
	"github.com/osvaldoandrade/nftminter/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupMappings(app *Application) {
	e := app.Engine
	e.GET("/", controllers.NewRootController(controllers.RootInfo{Name: ServiceName, Version: Version, Model: app.modelName()}).Handle)
	e.GET("/health", controllers.NewHealthController(controllers.Readiness{
		Generation: app.Generation != nil,
		Storage:    app.Storage != nil,
		Chain:      app.Chain != nil,
	}, app.now).Handle)
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := e.Group("/api/v1")
	{
		v1.POST("/generate-nft",
			middleware.RateLimitGenerate(app.RateLimiter, "generate_nft", middleware.SingleCost),
			controllers.NewGenerateNFTController(app.Generation).Handle)
		v1.POST("/generate-batch",
			middleware.RateLimitGenerate(app.RateLimiter, "generate_batch", middleware.BatchCost),
			controllers.NewGenerateBatchController(app.Generation).Handle)

		v1.GET("/image/:filename", controllers.NewImageController(app.Store).Handle)
		v1.GET("/metadata/:filename", controllers.NewMetadataController(app.Store).Handle)

		mint := v1.Group("", middleware.MintAuthMiddleware(app.MintValidator))
		mint.POST("/mint-nft", middleware.RateLimitMint(app.RateLimiter), controllers.NewMintNFTController(app.Pipeline).Handle)

		v1.GET("/pipelines/:id", controllers.NewGetPipelineController(app.Pipeline).Handle)
		v1.GET("/tokens/:id", controllers.NewTokenDetailsController(tokenReader(app.Chain)).Handle)
	}
}

// tokenReader keeps an absent chain client a nil interface for the controller's 503 check.
func tokenReader(c ChainClient) controllers.TokenReader {
	if c == nil {
		return nil
	}
	return c
}
