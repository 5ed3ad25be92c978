package centris

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Listing is a brokerage rental listing page.
type Listing struct {
	ListingID       string          `json:"listing_id"`
	Title           string          `json:"title"`
	Category        string          `json:"category"`
	Price           string          `json:"price"`
	Address         Address         `json:"address"`
	Characteristics Characteristics `json:"characteristics"`
	Features        []string        `json:"features"`
	Description     string          `json:"description"`
	Photos          []string        `json:"photos"`
	Videos          []string        `json:"videos"`
	Brokers         []Broker        `json:"brokers"`
	Coordinates     *Coordinates    `json:"coordinates"`
	URL             string          `json:"url"`
	PublishedAt     string          `json:"published_at"`
}

// Address is the structured address block of a listing.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

// Broker is a listing agent.
type Broker struct {
	Name   string `json:"name"`
	Agency string `json:"agency"`
	Phone  string `json:"phone"`
}

// Coordinates is the map pin of a listing.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Characteristic is one label/value row of the listing summary table.
type Characteristic struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Characteristics accepts both the row array of current captures and the
// label-to-value object of older ones. Object keys are sorted.
type Characteristics []Characteristic

func (c *Characteristics) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}
	switch data[0] {
	case '[':
		var rows []Characteristic
		if err := json.Unmarshal(data, &rows); err != nil {
			return err
		}
		*c = rows
		return nil
	case '{':
		var m map[string]string
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		labels := make([]string, 0, len(m))
		for k := range m {
			labels = append(labels, k)
		}
		sort.Strings(labels)
		rows := make([]Characteristic, 0, len(labels))
		for _, l := range labels {
			rows = append(rows, Characteristic{Label: l, Value: m[l]})
		}
		*c = rows
		return nil
	}
	return fmt.Errorf("characteristics: unexpected JSON %q", data[:1])
}
