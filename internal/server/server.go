package server

import (
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/hashicorp-forge/docview/internal/config"
	"github.com/hashicorp-forge/docview/pkg/storage"
)

// Server contains the server configuration.
type Server struct {
	// Config is the config for the server.
	Config *config.Config

	// DB is the document database.
	DB *gorm.DB

	// Storage holds the incoming and results directories.
	Storage *storage.Store

	// Logger is the logger for the server.
	Logger hclog.Logger
}
