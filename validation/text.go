package validation

import "strings"

// dangerousPatterns são removidos do texto nas formas minúscula e maiúscula.
// Caixa mista ("<ScRiPt") passa: é um filtro grosso, quem renderiza a saída
// ainda precisa escapar.
var dangerousPatterns = []string{"<script", "</script", "javascript:", "onload=", "onerror="}

// Text apara, trunca e remove os padrões perigosos. Rejeita texto vazio antes
// ou depois da sanitização.
func (v *Validator) Text(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", reject("Empty or invalid text provided")
	}

	text = truncateRunes(text, v.maxTextLength)
	text = stripDangerous(text)
	if strings.TrimSpace(text) == "" {
		return "", reject("Empty or invalid text provided")
	}
	return text, nil
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// stripDangerous repete até estabilizar, senão "<scr<scriptipt" remontaria
// o padrão depois da primeira passada.
func stripDangerous(s string) string {
	for {
		prev := s
		for _, p := range dangerousPatterns {
			s = strings.ReplaceAll(s, strings.ToLower(p), "")
			s = strings.ReplaceAll(s, strings.ToUpper(p), "")
		}
		if s == prev {
			return s
		}
	}
}
