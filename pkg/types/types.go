package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WalletSession is the connection state derived by a successful connect.
// The zero value is the disconnected session.
type WalletSession struct {
	Address      string `json:"address,omitempty"`
	IsConnected  bool   `json:"isConnected"`
	IsAuthorized bool   `json:"isAuthorized"`
	IsOwner      bool   `json:"isOwner"`
}

// HasAddress reports whether the session carries an account
func (s WalletSession) HasAddress() bool {
	return s.Address != ""
}

// Product is the on-chain product record
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentHash string `json:"contentHash"`
	Creator     string `json:"creator"`
	Location    string `json:"location"`
	Status      uint8  `json:"status"`
	Steps       []Step `json:"steps"`
}

// Step is one custody/handling event appended to a product
type Step struct {
	Location    string     `json:"location"`
	Description string     `json:"description"`
	Timestamp   int64      `json:"timestamp"` // seconds since epoch
	Actor       string     `json:"actor"`
	Status      StepStatus `json:"status"`
}

// Time returns the step timestamp as a time.Time
func (s Step) Time() time.Time {
	return time.Unix(s.Timestamp, 0).UTC()
}

// ProductStatus is the lifecycle status stored on a product
type ProductStatus uint8

const (
	ProductCreated ProductStatus = iota
	ProductInProgress
	ProductCompleted
	ProductRejected
)

var productStatusLabels = map[ProductStatus]string{
	ProductCreated:    "Created",
	ProductInProgress: "InProgress",
	ProductCompleted:  "Completed",
	ProductRejected:   "Rejected",
}

func (s ProductStatus) String() string {
	if label, ok := productStatusLabels[s]; ok {
		return label
	}
	return fmt.Sprintf("ProductStatus(%d)", uint8(s))
}

// StepStatus is the status code recorded with each step
type StepStatus uint8

const (
	StepManufactured StepStatus = iota
	StepInspected
	StepPackaged
	StepStored
	StepShipped
	StepReceived
	StepSold
	StepReturned
	StepDisposed
)

var stepStatusLabels = map[StepStatus]string{
	StepManufactured: "Manufactured",
	StepInspected:    "Inspected",
	StepPackaged:     "Packaged",
	StepStored:       "Stored",
	StepShipped:      "Shipped",
	StepReceived:     "Received",
	StepSold:         "Sold",
	StepReturned:     "Returned",
	StepDisposed:     "Disposed",
}

func (s StepStatus) String() string {
	if label, ok := stepStatusLabels[s]; ok {
		return label
	}
	return fmt.Sprintf("StepStatus(%d)", uint8(s))
}

// Valid reports whether s is one of the known step statuses
func (s StepStatus) Valid() bool {
	_, ok := stepStatusLabels[s]
	return ok
}

// ParseStepStatus accepts either a label ("Shipped", case-insensitive) or its numeric code
func ParseStepStatus(value string) (StepStatus, error) {
	value = strings.TrimSpace(value)
	if n, err := strconv.ParseUint(value, 10, 8); err == nil {
		status := StepStatus(n)
		if !status.Valid() {
			return 0, fmt.Errorf("unknown step status code: %d", n)
		}
		return status, nil
	}
	for status, label := range stepStatusLabels {
		if strings.EqualFold(label, value) {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown step status: %q", value)
}

// ContentMetadata is the JSON document a product's content hash points to
type ContentMetadata struct {
	ProductID   string            `json:"productId,omitempty"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Image       string            `json:"image,omitempty"`
	Certificate string            `json:"certificate,omitempty"`
	CreatedAt   string            `json:"createdAt,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// ProductDetails is a product together with its resolved metadata.
// Metadata is nil when the content could not be fetched.
type ProductDetails struct {
	Product  *Product         `json:"product"`
	Metadata *ContentMetadata `json:"metadata,omitempty"`
}
