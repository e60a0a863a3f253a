package ascrepo

import (
	"time"

	"github.com/segmentio/encoding/json"
)

// JSON:API document shapes used by the vendor API.

type resource struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Attributes json.RawMessage `json:"attributes,omitempty"`
}

type listDocument struct {
	Data []resource `json:"data"`
}

type singleDocument struct {
	Data *resource `json:"data"`
}

type appAttributes struct {
	Name          string `json:"name"`
	BundleID      string `json:"bundleId"`
	SKU           string `json:"sku"`
	PrimaryLocale string `json:"primaryLocale"`
}

type versionAttributes struct {
	VersionString string     `json:"versionString"`
	AppStoreState string     `json:"appStoreState"`
	Platform      string     `json:"platform"`
	CreatedDate   *time.Time `json:"createdDate"`
}

type localizationAttributes struct {
	Locale   *string `json:"locale"`
	WhatsNew *string `json:"whatsNew"`
}

type patchLocalizationAttributes struct {
	WhatsNew string `json:"whatsNew"`
}

type patchLocalizationData struct {
	Type       string                      `json:"type"`
	ID         string                      `json:"id"`
	Attributes patchLocalizationAttributes `json:"attributes"`
}

type patchLocalizationDocument struct {
	Data patchLocalizationData `json:"data"`
}
