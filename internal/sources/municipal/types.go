package municipal

import "github.com/mkoziy/habitat/ingest/internal/capture"

// Unit is one assessment roll unit page.
type Unit struct {
	Matricule     string   `json:"matricule"`
	Address       string   `json:"address"`
	City          string   `json:"city"`
	PostalCode    string   `json:"postal_code"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	Units         string   `json:"units"`
	YearBuilt     string   `json:"year_built"`
	LandArea      string   `json:"land_area"`
	BuildingArea  string   `json:"building_area"`
	AssessedValue string   `json:"assessed_value"`
	UseCode       string   `json:"use_code"`
	UseLabel      string   `json:"use_label"`
	Owners        []Owner  `json:"owners"`
}

// Owner is a registered owner of a unit.
type Owner struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Address string `json:"address"`
}

// legacyUnit is the French-keyed payload of the first roll scraper.
type legacyUnit struct {
	Matricule      string `json:"matricule"`
	Adresse        string `json:"adresse"`
	Arrondissement string `json:"arrondissement"`
	Logements      string `json:"nombre_logements"`
	Annee          string `json:"annee_construction"`
	Terrain        string `json:"superficie_terrain"`
	Batiment       string `json:"superficie_batiment"`
	Valeur         string `json:"valeur_totale"`
	CodeUtil       string `json:"code_utilisation"`
	Utilisation    string `json:"utilisation"`
	Proprietaires  []struct {
		Nom     string `json:"nom"`
		Statut  string `json:"statut"`
		Adresse string `json:"adresse_postale"`
	} `json:"proprietaires"`
}

func (l legacyUnit) unit() Unit {
	u := Unit{
		Matricule:     l.Matricule,
		Address:       l.Adresse,
		City:          l.Arrondissement,
		Units:         l.Logements,
		YearBuilt:     l.Annee,
		LandArea:      l.Terrain,
		BuildingArea:  l.Batiment,
		AssessedValue: l.Valeur,
		UseCode:       l.CodeUtil,
		UseLabel:      l.Utilisation,
	}
	for _, p := range l.Proprietaires {
		u.Owners = append(u.Owners, Owner{Name: p.Nom, Status: p.Statut, Address: p.Adresse})
	}
	return u
}

func decodeUnit(doc capture.Document) (Unit, error) {
	if doc.Variant == capture.VariantLegacy {
		var legacy legacyUnit
		if err := doc.Unmarshal(&legacy); err != nil {
			return Unit{}, err
		}
		return legacy.unit(), nil
	}
	var u Unit
	if err := doc.Unmarshal(&u); err != nil {
		return Unit{}, err
	}
	return u, nil
}
