package parser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"pizzeria-rag-go/internal/allergen"
	"pizzeria-rag-go/internal/model"
)

var (
	// "Pizza Margherita 9€"、"PIZZA REGINA: jambon..." 之类的写法；名称最多三个词。
	pizzaPrefixPattern = regexp.MustCompile(`(?im)\bpizzas?[ \t]+([\p{L}']+(?:[ \t]+[\p{L}']+){0,2}?)[ \t]*(?:[€\d:,.(\-–]|$)`)
	// 行首大写名称后跟破折号："Regina - jambon, champignons"
	dashLinePattern = regexp.MustCompile(`(?m)^[ \t]*(\p{Lu}[\p{L}' ]+?)[ \t]*[-–][ \t]`)
	pricePattern    = regexp.MustCompile(`(\d+(?:[.,]\d{1,2})?)[ \t]*(?:€|euros?)`)
)

// 被正则误捕获的通用词。
var notPizzaNames = map[string]bool{
	"pizza": true, "pizzas": true, "menu": true, "carte": true,
	"prix": true, "nos": true, "les": true, "des": true,
}

// ParsePizzas 识别菜单中的披萨名称及同一行内紧随其后的价格，按首次出现去重。
func ParsePizzas(text string) []model.Pizza {
	var pizzas []model.Pizza
	seen := make(map[string]bool)

	add := func(raw, rest string) {
		name := normalizeName(raw)
		if len(name) > 6 && strings.EqualFold(name[:6], "pizza ") {
			name = name[6:]
		}
		key := strings.ToLower(name)
		if len([]rune(name)) <= 2 || notPizzaNames[key] || seen[key] {
			return
		}
		seen[key] = true
		pizzas = append(pizzas, model.Pizza{Name: name, Price: firstPrice(rest)})
	}

	for _, m := range pizzaPrefixPattern.FindAllStringSubmatchIndex(text, -1) {
		add(text[m[2]:m[3]], restOfLine(text, m[3]))
	}
	for _, m := range dashLinePattern.FindAllStringSubmatchIndex(text, -1) {
		add(text[m[2]:m[3]], restOfLine(text, m[3]))
	}
	return pizzas
}

// ParseAllergenMentions 文本中出现的过敏原类别。
func ParseAllergenMentions(a *allergen.Analyzer, text string) []string {
	return a.DetectInText(text)
}

func restOfLine(text string, from int) string {
	rest := text[from:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func firstPrice(s string) float64 {
	m := pricePattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

// normalizeName "QUATRE  fromages" -> "Quatre Fromages"
func normalizeName(raw string) string {
	words := strings.Fields(raw)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
