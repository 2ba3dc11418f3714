// Package sl содержит хелперы для slog, которыми пользуются все слои сервиса.
package sl

import "log/slog"

// Err кладёт текст ошибки под ключ "error", включая всю цепочку обёрток op.
// Nil даёт пустой атрибут, и slog его пропускает.
//
//	log.Error("failed to load user", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}
