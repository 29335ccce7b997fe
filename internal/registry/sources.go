// Package registry loads the inputs that steer discovery: trusted
// publisher sources from Notion and interest profiles from a local YAML
// file.
package registry

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/event-scout/internal/model"
	"github.com/sells-group/event-scout/pkg/notion"
)

// LoadSourceRegistry queries the Notion source database for all active
// trusted publishers and returns an indexed SourceRegistry.
func LoadSourceRegistry(ctx context.Context, client notion.Client, dbID string) (*model.SourceRegistry, error) {
	pages, err := notion.QueryActiveSources(ctx, client, dbID)
	if err != nil {
		return nil, eris.Wrap(err, "registry: load source registry")
	}

	var sources []model.TrustedSource
	for _, p := range pages {
		s, err := parseSourcePage(p)
		if err != nil {
			zap.L().Warn("registry: skipping malformed source page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			continue
		}
		sources = append(sources, s)
	}

	return model.NewSourceRegistry(sources), nil
}

func parseSourcePage(p notionapi.Page) (model.TrustedSource, error) {
	s := model.TrustedSource{
		ID: string(p.ID),
	}

	// Name (title)
	if prop, ok := p.Properties["Name"]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			s.Name = plainText(tp.Title)
		}
	}

	// Domain (url)
	if prop, ok := p.Properties["Domain"]; ok {
		if up, ok := prop.(*notionapi.URLProperty); ok {
			s.Domain = up.URL
		}
	}

	// Tags (multi_select)
	if prop, ok := p.Properties["Tags"]; ok {
		if msp, ok := prop.(*notionapi.MultiSelectProperty); ok {
			for _, opt := range msp.MultiSelect {
				s.Tags = append(s.Tags, opt.Name)
			}
		}
	}

	// Reliability (number)
	if prop, ok := p.Properties["Reliability"]; ok {
		if np, ok := prop.(*notionapi.NumberProperty); ok {
			s.Reliability = int(np.Number)
		}
	}

	if s.Domain == "" {
		return s, eris.New("missing Domain property")
	}
	if s.Name == "" {
		s.Name = s.Domain
	}

	return s, nil
}

// plainText concatenates the plain_text values from a slice of RichText.
func plainText(rts []notionapi.RichText) string {
	var s string
	for _, rt := range rts {
		s += rt.PlainText
	}
	return s
}
