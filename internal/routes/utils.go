package routes

import (
	"github.com/gin-gonic/gin"

	"informatik-booking/internal/storage"
)

const storageKey = "Storage"

// InjectStorage makes the storage provider available to handlers.
func InjectStorage(provider storage.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(storageKey, provider)
		c.Next()
	}
}

func GetStorageProvider(c *gin.Context) (storage.Provider, error) {
	v, exists := c.Get(storageKey)
	if !exists {
		return nil, ErrStorageProviderNotFound
	}
	provider, ok := v.(storage.Provider)
	if !ok || provider == nil {
		return nil, ErrInvalidStorageProvider
	}
	return provider, nil
}
