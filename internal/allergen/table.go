// Package allergen 维护过敏原关键词表，并提供文本检测与用户限制分析。
package allergen

import "strings"

// Category 一个过敏原类别及其触发关键词（均为小写）。
type Category struct {
	Name     string
	Keywords []string
}

// Table 欧盟 14 类强制标注过敏原。顺序即检测结果与参考列表的顺序。
var Table = []Category{
	{Name: "Gluten", Keywords: []string{
		"gluten", "blé", "farine", "seigle", "orge", "avoine", "épeautre", "epeautre", "kamut", "semoule", "chapelure",
	}},
	{Name: "Crustacés", Keywords: []string{
		"crustacé", "crustace", "crevette", "homard", "langoustine", "crabe", "écrevisse", "ecrevisse", "gambas",
	}},
	{Name: "Œufs", Keywords: []string{
		"œuf", "oeuf", "ovoproduit", "mayonnaise", "albumine",
	}},
	{Name: "Poissons", Keywords: []string{
		"poisson", "anchois", "thon", "saumon", "cabillaud", "sardine", "colatura",
	}},
	{Name: "Arachides", Keywords: []string{
		"arachide", "cacahuète", "cacahuete", "cacahouète",
	}},
	{Name: "Soja", Keywords: []string{
		"soja", "soya", "tofu", "lécithine de soja", "e322",
	}},
	{Name: "Lait", Keywords: []string{
		"lait", "lactose", "fromage", "mozzarella", "crème", "creme fraiche", "beurre", "parmesan", "gorgonzola",
		"ricotta", "burrata", "pecorino", "provola", "scamorza", "mascarpone",
	}},
	{Name: "Fruits à coque", Keywords: []string{
		"fruits à coque", "fruits a coque", "noix", "noisette", "amande", "pistache", "cajou", "pécan", "pecan", "macadamia", "pignon",
	}},
	{Name: "Céleri", Keywords: []string{
		"céleri", "celeri",
	}},
	{Name: "Moutarde", Keywords: []string{
		"moutarde",
	}},
	{Name: "Sésame", Keywords: []string{
		"sésame", "sesame",
	}},
	{Name: "Sulfites", Keywords: []string{
		"sulfite", "anhydride sulfureux", "dioxyde de soufre",
		"e220", "e221", "e222", "e223", "e224", "e225", "e226", "e227", "e228",
	}},
	{Name: "Lupin", Keywords: []string{
		"lupin",
	}},
	{Name: "Mollusques", Keywords: []string{
		"mollusque", "moule", "calamar", "calmar", "poulpe", "seiche", "huître", "huitre", "palourde", "coquille saint-jacques",
	}},
}

// Names 参考过敏原列表，按表顺序。
func Names() []string {
	names := make([]string, len(Table))
	for i, c := range Table {
		names[i] = c.Name
	}
	return names
}

// Canonical 将用户输入的类别名（忽略大小写）规范为表中的名称。
func Canonical(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, c := range Table {
		if strings.EqualFold(c.Name, name) {
			return c.Name, true
		}
	}
	return "", false
}
