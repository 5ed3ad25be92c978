package registry

import "github.com/mkoziy/habitat/ingest/internal/capture"

// Company is an enterprise register page.
type Company struct {
	NEQ            string   `json:"neq"`
	Name           string   `json:"name"`
	OtherNames     []string `json:"other_names"`
	Status         string   `json:"status"`
	Address        string   `json:"address"`
	IncorporatedAt string   `json:"incorporated_at"`
	Directors      []Person `json:"directors"`
	Shareholders   []Person `json:"shareholders"`
}

// Person is a director or shareholder entry.
type Person struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type legacyCompany struct {
	NEQ            string   `json:"numero_entreprise"`
	Nom            string   `json:"nom"`
	AutresNoms     []string `json:"autres_noms"`
	Statut         string   `json:"statut"`
	Adresse        string   `json:"adresse"`
	Immatriculee   string   `json:"date_immatriculation"`
	Administrateur []struct {
		Nom      string `json:"nom"`
		Fonction string `json:"fonction"`
	} `json:"administrateurs"`
	Actionnaires []struct {
		Nom  string `json:"nom"`
		Rang string `json:"rang"`
	} `json:"actionnaires"`
}

func (l legacyCompany) company() Company {
	c := Company{
		NEQ:            l.NEQ,
		Name:           l.Nom,
		OtherNames:     l.AutresNoms,
		Status:         l.Statut,
		Address:        l.Adresse,
		IncorporatedAt: l.Immatriculee,
	}
	for _, a := range l.Administrateur {
		c.Directors = append(c.Directors, Person{Name: a.Nom, Role: a.Fonction})
	}
	for _, a := range l.Actionnaires {
		c.Shareholders = append(c.Shareholders, Person{Name: a.Nom, Role: a.Rang})
	}
	return c
}

func decodeCompany(doc capture.Document) (Company, error) {
	if doc.Variant == capture.VariantLegacy {
		var legacy legacyCompany
		if err := doc.Unmarshal(&legacy); err != nil {
			return Company{}, err
		}
		return legacy.company(), nil
	}
	var c Company
	if err := doc.Unmarshal(&c); err != nil {
		return Company{}, err
	}
	return c, nil
}
