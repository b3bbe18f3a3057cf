package main

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/plantshop/internal/domain/product"
)

// parseLine decodes one NDJSON feed record into a product without an id or
// seller. Unknown keys are ignored.
func parseLine(line []byte) (product.Product, error) {
	var p product.Product
	d := jx.DecodeBytes(line)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "title":
			p.Title, err = d.Str()
		case "subtitle":
			p.Subtitle, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "scientificName":
			p.ScientificName, err = d.Str()
		case "origin":
			p.Origin, err = d.Str()
		case "thumbnail":
			p.Thumbnail, err = d.Str()
		case "category":
			var c string
			c, err = d.Str()
			p.Category = product.Category(c)
		case "stock":
			p.Stock, err = d.Int()
		case "price":
			p.Price, err = decodePrice(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %s", key)
		}
		return nil
	})
	if err != nil {
		return product.Product{}, err
	}

	p.Title = strings.TrimSpace(p.Title)
	switch {
	case p.Title == "":
		return product.Product{}, errors.New("title is required")
	case p.Price.IsNegative():
		return product.Product{}, errors.New("price must not be negative")
	case p.Stock < 0:
		return product.Product{}, errors.New("stock must not be negative")
	}
	if p.Category == "" {
		p.Category = product.DefaultCategory
	}
	if !p.Category.Valid() {
		return product.Product{}, errors.Errorf("unknown category %q", p.Category)
	}
	return p, nil
}

// decodePrice accepts both JSON numbers and numeric strings.
func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Decimal{}, errors.New("price must be a number or string")
	}
}

// titleKey normalizes a title for duplicate detection.
func titleKey(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}
