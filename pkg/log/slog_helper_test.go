package log

import "log/slog"

func sloggerError(err error) {
	slog.Error("reduction failed", ErrAttr(err))
}
