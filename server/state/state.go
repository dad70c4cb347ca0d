package state

import (
	"github.com/indieinfra/mediadrop/config"
	"github.com/indieinfra/mediadrop/media"
	"github.com/indieinfra/mediadrop/server/metrics"
	"github.com/indieinfra/mediadrop/server/session"
	"github.com/indieinfra/mediadrop/storage/content"
	vendor "github.com/indieinfra/mediadrop/storage/objectstore"
)

// MediadropState is shared by every handler.
type MediadropState struct {
	Cfg       *config.Config
	Vendor    vendor.Adapter
	Registrar content.Registrar
	Extractor media.Extractor
	Sessions  *session.Registry
	Metrics   *metrics.Metrics
}

// Credentials returns the vendor credentials from configuration.
func (st *MediadropState) Credentials() vendor.Credentials {
	return vendor.Credentials(st.Cfg.Vendor.Credentials)
}
