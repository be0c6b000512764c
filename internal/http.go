package app

import (
	"log/slog"
	"net"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"informatik-booking/internal/access"
	. "informatik-booking/internal/config"
	routes "informatik-booking/internal/routes"
	"informatik-booking/internal/storage"

	"github.com/gin-gonic/gin"
)

// Services are the collaborators the HTTP layer is wired with.
type Services struct {
	Storage  storage.Provider
	RBAC     *access.RBAC
	OAuth    routes.TokenRelay
	Calendar routes.CalendarConnector
	Notifier routes.BookingNotifier // optional
	Location *time.Location
	StateTTL uint
}

func securityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("X-XSS-Protection", "1; mode=block")

	// Disable caching
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Next()
}

// corsMiddleware lets the booking page call the API from its own origin.
// "*" allows every origin; an empty list sends no CORS headers.
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := slices.Contains(origins, "*")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || slices.Contains(origins, origin)) {
			if allowAll {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Middleware to check if the IP is allowed.
func IPAccessControl(allowedCIDRs []string) gin.HandlerFunc {
	var parsedCIDRs []*net.IPNet

	// Allow local networks in debug mode
	if os.Getenv("GIN_MODE") != "release" {
		allowedCIDRs = append(allowedCIDRs, "127.0.0.1/8", "::1/128")
	}

	for _, cidr := range allowedCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			slog.Warn("Invalid CIDR", "cidr", cidr)
			continue
		}
		slog.Debug("Allowed CIDR", "cidr", cidr)
		parsedCIDRs = append(parsedCIDRs, network)
	}

	return func(c *gin.Context) {
		clientIP := net.ParseIP(c.ClientIP())
		if clientIP == nil {
			// Should not happen
			slog.Warn("Invalid client IP", "ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}

		for _, cidr := range parsedCIDRs {
			if cidr.Contains(clientIP) {
				c.Next()
				return
			}
		}
		slog.Warn("IP not allowed", "ip", clientIP)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	}
}

// splitList splits a comma separated config value, dropping empty items.
func splitList(value string) []string {
	var out []string
	for item := range strings.SplitSeq(value, ",") {
		if item := strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func HTTPServer(svc Services) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	if Cfg != nil && Cfg.AllowedNetworks != "" {
		slog.Debug("Enabling IP access control", "allowed_networks", Cfg.AllowedNetworks)
		r.Use(IPAccessControl(splitList(Cfg.AllowedNetworks)))
	}

	var origins []string
	if Cfg != nil {
		origins = splitList(Cfg.CORSOrigins)
	}
	r.Use(corsMiddleware(origins), securityHeaders, routes.ErrorHandler())
	r.Use(routes.InjectStorage(svc.Storage), routes.InjectRBAC(svc.RBAC))

	loc := svc.Location
	if loc == nil {
		loc = time.UTC
	}

	routes.Health(&r.RouterGroup)

	api := r.Group("/api")
	routes.CalendarDataRoutes(api.Group("/calendar-data"), loc)
	routes.GoogleAuthRoutes(api.Group("/auth/google"), svc.OAuth, svc.StateTTL)
	routes.CalendarRoutes(api.Group("/calendar"), svc.Calendar, svc.Notifier, loc)

	return r
}
