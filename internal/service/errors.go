package service

import "errors"

// Ошибки бизнес-логики сервисов
var (
	ErrInvalidDateRange = errors.New("start date is after end date")
	ErrInvalidInterval  = errors.New("invalid interval")
	ErrInvalidDimension = errors.New("invalid breakdown dimension")
	ErrInvalidURL       = errors.New("invalid target URL")
	ErrSpamDomain       = errors.New("target domain is blacklisted")
	ErrInvalidQRCode    = errors.New("invalid qr code")
	ErrProcessorStopped = errors.New("scan processor stopped")
)
