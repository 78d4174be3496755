package server

import (
	"github.com/raysh454/consentscan/internal/app"
	"github.com/raysh454/consentscan/internal/browser"
	"github.com/raysh454/consentscan/internal/logging"
)

type Config struct {
	// ListenAddr overrides AppConfig.Server.ListenAddr when set.
	ListenAddr string

	AppConfig *app.Config
	Logger    logging.Logger

	// Renderer replaces the browser backend selected by AppConfig.Browser.
	Renderer browser.PageRenderer
}
