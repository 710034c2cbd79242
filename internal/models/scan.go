package models

import (
	"encoding/json"
	"time"
)

const UnknownValue = "Unknown"

// ScanRecord is written once per successful redirect and never updated.
type ScanRecord struct {
	ID        string    `json:"id"`
	QRCodeID  string    `json:"qr_code_id"`
	IPAddress *string   `json:"ip_address"`
	UserAgent *string   `json:"user_agent"`
	Referer   *string   `json:"referer"`
	Country   *string   `json:"country"`
	City      *string   `json:"city"`
	Device    string    `json:"device"`
	Browser   string    `json:"browser"`
	OS        string    `json:"os"`
	ScanDate  time.Time `json:"scan_date"`
}

// ScanEvent carries the raw request fields of a redirect. Nil means the request had none.
type ScanEvent struct {
	QRCodeID  string
	IPAddress *string
	UserAgent *string
	Referer   *string
	Country   *string
	City      *string
}

type ScanSummary struct {
	QRCodeID       string `json:"qr_code_id"`
	TotalScans     int64  `json:"total_scans"`
	UniqueVisitors int64  `json:"unique_visitors"`
}

type DateRange struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type Interval string

const (
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
)

func (i Interval) Valid() bool {
	switch i {
	case IntervalDay, IntervalWeek, IntervalMonth:
		return true
	}
	return false
}

// RawScanQuery holds the analytics query string values before parsing.
type RawScanQuery struct {
	StartDate string `form:"startDate"`
	EndDate   string `form:"endDate"`
	Interval  string `form:"interval"`
	Timezone  string `form:"timezone"`
}

type AggregateQuery struct {
	DateRange
	Interval Interval `json:"interval"`
	Timezone string   `json:"timezone"`
}

type Bucket struct {
	DateKey string `json:"date"`
	Label   string `json:"label"`
	Count   int64  `json:"count"`
}

type Dimension string

const (
	DimensionDevice  Dimension = "device"
	DimensionBrowser Dimension = "browser"
	DimensionOS      Dimension = "os"
)

func (d Dimension) Valid() bool {
	switch d {
	case DimensionDevice, DimensionBrowser, DimensionOS:
		return true
	}
	return false
}

// Value returns the stored classification of a scan for this dimension.
func (d Dimension) Value(scan *ScanRecord) string {
	switch d {
	case DimensionDevice:
		return scan.Device
	case DimensionBrowser:
		return scan.Browser
	case DimensionOS:
		return scan.OS
	}
	return ""
}

type BreakdownEntry struct {
	Dimension Dimension `json:"-"`
	Category  string    `json:"category"`
	Count     int64     `json:"count"`
}

// MarshalJSON keys the category by its dimension, e.g. {"device":"Mobile","count":2}.
func (e BreakdownEntry) MarshalJSON() ([]byte, error) {
	key := string(e.Dimension)
	if key == "" {
		key = "category"
	}
	return json.Marshal(map[string]any{
		key:     e.Category,
		"count": e.Count,
	})
}
