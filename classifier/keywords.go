package classifier

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeywordTable mapeia categoria -> palavras-chave (minúsculas). Depois de
// carregada é só leitura.
type KeywordTable map[Category][]string

var defaultKeywords = KeywordTable{
	Recyclable: {
		"plastic", "bottle", "can", "aluminum", "paper", "cardboard",
		"glass", "newspaper", "magazine", "metal", "tin", "steel",
		"container", "jar", "box", "packaging", "wrapper", "bag",
		"cup", "plate", "tray", "carton", "tube", "foil",
	},
	Biodegradable: {
		"banana", "apple", "orange", "fruit", "vegetable", "food",
		"organic", "compost", "leaf", "wood", "branch", "plant",
		"peel", "core", "scrap", "leftover", "garden", "yard",
		"flower", "grass", "tree", "seed", "shell", "bone",
	},
	Hazardous: {
		"battery", "electronic", "chemical", "paint", "oil", "toxic",
		"medical", "needle", "syringe", "medicine", "drug", "acid",
		"cleaning", "detergent", "bleach", "pesticide", "solvent",
		"fluorescent", "bulb", "thermometer", "asbestos",
	},
}

// DefaultKeywords devolve uma cópia da tabela embutida.
func DefaultKeywords() KeywordTable {
	return defaultKeywords.clone()
}

func (t KeywordTable) clone() KeywordTable {
	out := make(KeywordTable, len(t))
	for c, kws := range t {
		out[c] = append([]string(nil), kws...)
	}
	return out
}

// normalize valida as categorias e deixa as palavras minúsculas, sem vazios e
// sem duplicatas (preservando a ordem).
func (t KeywordTable) normalize() (KeywordTable, error) {
	out := make(KeywordTable, len(t))
	for c, kws := range t {
		if !c.Valid() {
			return nil, fmt.Errorf("unknown category %q", c)
		}
		seen := make(map[string]struct{}, len(kws))
		for _, kw := range kws {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			out[c] = append(out[c], kw)
		}
	}
	return out, nil
}

// ParseKeywords lê uma tabela em YAML:
//
//	recyclable: [plastic, bottle]
//	hazardous:
//	  - battery
func ParseKeywords(data []byte) (KeywordTable, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse keywords: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("parse keywords: empty table")
	}

	t := make(KeywordTable, len(raw))
	for k, kws := range raw {
		c, ok := ParseCategory(k)
		if !ok {
			return nil, fmt.Errorf("parse keywords: unknown category %q", k)
		}
		t[c] = append(t[c], kws...)
	}
	return t.normalize()
}

// LoadKeywords carrega a tabela de um arquivo YAML (KEYWORDS_FILE).
func LoadKeywords(path string) (KeywordTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keywords file: %w", err)
	}
	return ParseKeywords(data)
}
