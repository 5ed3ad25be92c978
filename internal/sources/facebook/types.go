package facebook

import "github.com/mkoziy/habitat/ingest/internal/capture"

// Listing is a marketplace rental ad as written by the current capture tool.
type Listing struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Price       string   `json:"price"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Address     string   `json:"address"`
	UnitDetails []string `json:"unit_details"`
	Details     []string `json:"details"`
	SquareFeet  string   `json:"square_feet"`
	Images      []string `json:"images"`
	Videos      []string `json:"videos"`
	Seller      *Seller  `json:"seller"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	ListedAt    string   `json:"listed_at"`
	URL         string   `json:"url"`
}

// Seller is the account that posted the ad.
type Seller struct {
	Name    string `json:"name"`
	Profile string `json:"profile_url"`
}

// legacyListing is the bare GraphQL-shaped payload of the first capture tool.
type legacyListing struct {
	ID                  string   `json:"id"`
	Title               string   `json:"marketplace_listing_title"`
	FormattedPrice      string   `json:"formatted_price"`
	RedactedDescription string   `json:"redacted_description"`
	LocationText        string   `json:"location_text"`
	CustomSubTitles     []string `json:"custom_sub_titles"`
	Attributes          []string `json:"attributes"`
	Photos              []struct {
		URI string `json:"uri"`
	} `json:"photos"`
	SellerName   string `json:"seller_name"`
	CreationTime int64  `json:"creation_time"`
	Location     *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	Permalink string `json:"story_permalink"`
}

func (l legacyListing) listing() Listing {
	out := Listing{
		ID:          l.ID,
		Title:       l.Title,
		Price:       l.FormattedPrice,
		Description: l.RedactedDescription,
		Location:    l.LocationText,
		UnitDetails: l.CustomSubTitles,
		Details:     l.Attributes,
		URL:         l.Permalink,
	}
	for _, p := range l.Photos {
		if p.URI != "" {
			out.Images = append(out.Images, p.URI)
		}
	}
	if l.SellerName != "" {
		out.Seller = &Seller{Name: l.SellerName}
	}
	if l.Location != nil {
		lat, lng := l.Location.Latitude, l.Location.Longitude
		out.Latitude, out.Longitude = &lat, &lng
	}
	return out
}

// decodeListing reads either capture shape into a Listing.
func decodeListing(doc capture.Document) (Listing, int64, error) {
	if doc.Variant == capture.VariantLegacy {
		var legacy legacyListing
		if err := doc.Unmarshal(&legacy); err != nil {
			return Listing{}, 0, err
		}
		return legacy.listing(), legacy.CreationTime, nil
	}
	var l Listing
	if err := doc.Unmarshal(&l); err != nil {
		return Listing{}, 0, err
	}
	return l, 0, nil
}
