// Package useragent derives device, browser and OS labels from raw User-Agent headers.
package useragent

import (
	"strings"
	"sync"

	"github.com/SergeiKhy/scanme-analytics/internal/models"
	"github.com/ua-parser/uap-go/uaparser"
)

const (
	DeviceTablet  = "Tablet"
	DeviceMobile  = "Mobile"
	DeviceDesktop = "Desktop"
)

// Tablet agents frequently contain "mobile" too, so these are checked first.
var tabletMarkers = []string{"tablet", "ipad", "nexus 7", "kindle"}

type Classification struct {
	Device  string `json:"device"`
	Browser string `json:"browser"`
	OS      string `json:"os"`
}

// Unknown is stored when a scan carried no User-Agent header.
func Unknown() Classification {
	return Classification{
		Device:  models.UnknownValue,
		Browser: models.UnknownValue,
		OS:      models.UnknownValue,
	}
}

type Classifier interface {
	Classify(userAgent string) Classification
}

type classifier struct {
	parser *uaparser.Parser
}

var (
	defaultParser     *uaparser.Parser
	defaultParserOnce sync.Once
)

// NewClassifier returns a classifier backed by the embedded uap-core regex set.
// The parser is compiled once per process and is safe for concurrent use.
func NewClassifier() Classifier {
	defaultParserOnce.Do(func() {
		defaultParser = uaparser.NewFromSaved()
	})
	return &classifier{parser: defaultParser}
}

func (c *classifier) Classify(userAgent string) Classification {
	result := Classification{
		Device:  DetectDevice(userAgent),
		Browser: models.UnknownValue,
		OS:      models.UnknownValue,
	}
	if userAgent == "" {
		return result
	}

	client := c.parser.Parse(userAgent)
	if client.UserAgent != nil {
		result.Browser = familyVersion(client.UserAgent.Family, client.UserAgent.Major)
	}
	if client.Os != nil {
		result.OS = familyVersion(client.Os.Family, client.Os.Major)
	}
	return result
}

// DetectDevice maps an agent string onto Tablet, Mobile or Desktop.
func DetectDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)

	for _, marker := range tabletMarkers {
		if strings.Contains(ua, marker) {
			return DeviceTablet
		}
	}
	if strings.Contains(ua, "mobile") {
		return DeviceMobile
	}
	return DeviceDesktop
}

func familyVersion(family, major string) string {
	if family == "" {
		return models.UnknownValue
	}
	return strings.TrimSpace(family + " " + major)
}
