package app

import (
	"hund/internal/headsup"
	"hund/internal/notif"
	logx "hund/pkg/logx"
)

// logSurface renders heads-up transitions into the log. It keeps the decision
// core fully exercised when no real surface is configured, which is also how
// the daemon runs in development.
type logSurface struct {
	log logx.Logger
}

func (s logSurface) Present(key string, tpl headsup.Template, it *notif.Item) (headsup.ViewHandle, error) {
	s.log.Info("headsup present",
		logx.String("key", key),
		logx.String("template", tpl.String()),
		logx.String("package", it.PackageName),
		logx.String("title", it.Title))
	return key, nil
}

func (s logSurface) UpdateContent(h headsup.ViewHandle, it *notif.Item) error {
	s.log.Info("headsup update",
		logx.Any("handle", h), logx.String("title", it.Title))
	return nil
}

func (s logSurface) AnimateIn(h headsup.ViewHandle) {}

func (s logSurface) AnimateOut(h headsup.ViewHandle, onComplete func()) {
	if onComplete != nil {
		onComplete()
	}
}

func (s logSurface) Dismiss(h headsup.ViewHandle) {
	s.log.Info("headsup dismiss", logx.Any("handle", h))
}
