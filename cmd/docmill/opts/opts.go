package opts

import (
	"github.com/walteh/docmill/pkg/config"
	"github.com/walteh/docmill/pkg/log"
)

// RootOpts contains shared options used by all commands
type RootOpts struct {
	Config     *config.Config
	UserLogger *log.Logger
}
