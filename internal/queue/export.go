package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iliyamo/jo-ticketing/internal/model"
)

// OfferLister is the catalog read the exporter needs.
type OfferLister interface {
	ListActive(ctx context.Context) ([]model.Offer, error)
}

// OfferExporter regenerates the front-end offers module whenever the catalog
// changes.  It runs behind the offers.changed queue, never inside the
// request that edited the offer.
type OfferExporter struct {
	Offers    OfferLister
	Path      string // target file, e.g. export/offres.js
	MediaBase string // optional absolute base for image URLs
	MediaURL  string // media path prefix, e.g. /media/
}

// Handle implements HandlerFunc.  The event payload only has to decode; the
// file is always rebuilt from the current catalog so out-of-order events
// converge on the same content.
func (x *OfferExporter) Handle(ctx context.Context, body []byte) error {
	var ev OfferChangedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return x.Export(ctx)
}

// Export writes the module atomically (temp file + rename).
func (x *OfferExporter) Export(ctx context.Context) error {
	offers, err := x.Offers.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list offers: %w", err)
	}
	content := RenderOffersModule(offers, x.MediaBase, x.MediaURL)
	if err := os.MkdirAll(filepath.Dir(x.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := x.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return os.Rename(tmp, x.Path)
}

// RenderOffersModule builds the generated JS module exporting offresSolo,
// offresDuo and offresFamille.  Unknown categories fall into solo.
func RenderOffersModule(offers []model.Offer, mediaBase, mediaURL string) string {
	groups := map[string][]model.Offer{}
	for _, o := range offers {
		cat := strings.ToLower(o.Category)
		if cat != model.CategoryDuo && cat != model.CategoryFamille {
			cat = model.CategorySolo
		}
		groups[cat] = append(groups[cat], o)
	}

	var b strings.Builder
	b.WriteString("/**\n")
	b.WriteString(" * GENERATED FILE - DO NOT EDIT\n")
	b.WriteString(" * Rebuilt by the offers.changed subscriber on every catalog change.\n")
	b.WriteString(" */\n\n")
	b.WriteString("const BTN_CLASS = \"btn btn-custom\";\n\n")
	fmt.Fprintf(&b, "export const offresSolo = %s;\n\n", offerListJS(groups[model.CategorySolo], mediaBase, mediaURL))
	fmt.Fprintf(&b, "export const offresDuo = %s;\n\n", offerListJS(groups[model.CategoryDuo], mediaBase, mediaURL))
	fmt.Fprintf(&b, "export const offresFamille = %s;\n\n", offerListJS(groups[model.CategoryFamille], mediaBase, mediaURL))
	b.WriteString("export default { offresSolo, offresDuo, offresFamille };\n")
	return b.String()
}

func offerListJS(offers []model.Offer, mediaBase, mediaURL string) string {
	if len(offers) == 0 {
		return "[]"
	}
	items := make([]string, 0, len(offers))
	for _, o := range offers {
		items = append(items, offerJS(o, mediaBase, mediaURL))
	}
	return "[\n  " + strings.Join(items, ",\n  ") + "\n]"
}

func offerJS(o model.Offer, mediaBase, mediaURL string) string {
	titre := strings.TrimSpace(o.Titre)
	if titre == "" {
		titre = strings.TrimSpace(o.Name)
	}
	btn := o.BtnLabel
	if btn == "" {
		btn = "Choisir"
	}
	price, _ := o.Price.Float64()
	return fmt.Sprintf("{ image: %s, alt: %s, titre: %s, description: %s, prix: %s, btnLabel: %s, btnClass: BTN_CLASS, btnHref: %s }",
		jsString(imageURL(o.ImagePath, mediaBase, mediaURL)),
		jsString(o.Alt),
		jsString(titre),
		jsString(strings.TrimSpace(o.Description)),
		jsNumber(price),
		jsString(btn),
		jsString("/reservation"),
	)
}

// imageURL is root-relative unless mediaBase is set.
func imageURL(rel, mediaBase, mediaURL string) string {
	if rel == "" {
		return ""
	}
	if mediaURL == "" {
		mediaURL = "/media/"
	}
	p := "/" + strings.Trim(mediaURL, "/") + "/" + strings.TrimLeft(rel, "/")
	if mediaBase == "" {
		return p
	}
	return strings.TrimRight(mediaBase, "/") + p
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func jsNumber(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}
