package engine

import "go.uber.org/zap"

func fieldErr(err error) zap.Field {
	return zap.Error(err)
}
