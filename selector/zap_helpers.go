package selector

import "github.com/Laisky/zap"

func errField(err error) zap.Field { return zap.Error(err) }
