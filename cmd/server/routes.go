package main

import (
	"github.com/gin-gonic/gin"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/interfaces/http/handler"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/interfaces/http/middleware"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/interfaces/http/router"
)

type routeHandlers struct {
	health   *handler.HealthHandler
	airtable *handler.AirtableProxyHandler
	shopify  *handler.ShopifyProxyHandler
	cart     *handler.CartProxyHandler
	catalog  *handler.CatalogHandler
	webhook  *handler.WebhookHandler
}

// registerRoutes mounts the storefront proxies and health check at the root
// and the catalog API under /api/v1.
func registerRoutes(engine *gin.Engine, h routeHandlers) {
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Proxies keep the paths the storefront pages already call
	proxyRoutes := router.NewDomainGroup("proxy", "/api")
	proxyRoutes.Use(middleware.CORSWithConfig(middleware.ProxyCORSConfig()))
	proxyRoutes.Any("/airtable", h.airtable.List)
	proxyRoutes.Any("/shopify", h.shopify.Query)
	proxyRoutes.Any("/shopify-cart", h.cart.Handle)

	healthRoutes := router.NewDomainGroup("health", "")
	healthRoutes.GET("/health", h.health.Health)

	r.RegisterRoot(proxyRoutes).RegisterRoot(healthRoutes)

	catalogRoutes := router.NewDomainGroup("catalog", "/catalog")
	catalogRoutes.POST("/sync", h.catalog.Sync)
	catalogRoutes.GET("/products", h.catalog.ListProducts)
	catalogRoutes.GET("/products/:handle", h.catalog.GetProduct)

	webhookRoutes := router.NewDomainGroup("webhooks", "/webhooks")
	webhookRoutes.POST("/shopify/products", h.webhook.ShopifyProducts)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", h.health.GetSystemInfo)

	r.Register(catalogRoutes).
		Register(webhookRoutes).
		Register(systemRoutes)

	r.Setup()
}
