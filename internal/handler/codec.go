package handler

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-service/internal/domain/product"
)

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.RawStr(d.StringFixed(2))
}

func encodeView(e *jx.Encoder, v product.View) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(v.ID)
	e.FieldStart("name")
	e.Str(v.Name)
	e.FieldStart("description")
	e.Str(v.Description)
	e.FieldStart("priceUSD")
	encodeMoney(e, v.PriceUSD)
	e.FieldStart("priceEUR")
	encodeMoney(e, v.PriceEUR)
	e.FieldStart("category")
	e.Str(v.Category)
	e.FieldStart("imageUrl")
	e.Str(v.ImageURL)
	e.FieldStart("available")
	e.Bool(v.Available)
	e.FieldStart("createdAt")
	e.Str(v.CreatedAt.UTC().Format(time.RFC3339Nano))
	e.FieldStart("updatedAt")
	e.Str(v.UpdatedAt.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
}

func encodePage(e *jx.Encoder, p product.Page[product.View]) {
	e.ObjStart()
	e.FieldStart("content")
	e.ArrStart()
	for _, v := range p.Content {
		encodeView(e, v)
	}
	e.ArrEnd()
	e.FieldStart("page")
	e.Int(p.Page)
	e.FieldStart("size")
	e.Int(p.Size)
	e.FieldStart("totalElements")
	e.Int64(p.TotalElements)
	e.FieldStart("totalPages")
	e.Int(p.TotalPages)
	e.FieldStart("first")
	e.Bool(p.First)
	e.FieldStart("last")
	e.Bool(p.Last)
	e.ObjEnd()
}

// decodeRequest reads a product request body. Unknown fields are skipped
// and explicit nulls leave a field unset.
func decodeRequest(data []byte) (product.Request, error) {
	var req product.Request
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		switch string(key) {
		case "name":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "name")
			}
			req.Name = v
		case "description":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "description")
			}
			req.Description = v
		case "price":
			v, err := decodeDecimal(d)
			if err != nil {
				return errors.Wrap(err, "price")
			}
			req.Price = &v
		case "category":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "category")
			}
			req.Category = &v
		case "imageUrl":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "imageUrl")
			}
			req.ImageURL = &v
		case "available":
			v, err := d.Bool()
			if err != nil {
				return errors.Wrap(err, "available")
			}
			req.Available = &v
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return product.Request{}, err
	}
	return req, nil
}

// decodeDecimal accepts a JSON number or a string holding one.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(n.String())
}
