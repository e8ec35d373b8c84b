package emulator

import (
	"context"
	"strings"

	"github.com/HerbHall/welfaredesk/pkg/plugin"
)

// Module mounts the emulator's action route on the admin server, so a
// single `serve --emulate` process acts as its own backend. Stored files
// are served by the admin module from the shared attachments store.
type Module struct {
	emu    *Emulator
	prefix string
}

var (
	_ plugin.Plugin       = (*Module)(nil)
	_ plugin.HTTPProvider = (*Module)(nil)
)

// NewModule serves emu's scripts under prefix, e.g. "/admin/php/".
func NewModule(emu *Emulator, prefix string) *Module {
	prefix = "/" + strings.Trim(prefix, "/") + "/"
	if prefix == "//" {
		prefix = "/"
	}
	return &Module{emu: emu, prefix: prefix}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "emulator",
		Version:     "1.0.0",
		Description: "In-process endpoint emulator",
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	if deps.Logger != nil {
		m.emu.logger = deps.Logger
	}
	return nil
}

func (m *Module) Start(context.Context) error { return nil }
func (m *Module) Stop(context.Context) error  { return nil }

func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: m.prefix + "{script}", Handler: m.emu.handleAction},
	}
}
