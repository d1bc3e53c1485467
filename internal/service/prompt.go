package service

import (
	"fmt"
	"strings"

	"pizzeria-rag-go/internal/model"
)

const (
	multiCompanyRole  = "Tu es un assistant du groupe de pizzerias. Nous avons plusieurs restaurants avec des menus différents."
	singleCompanyRole = "Tu es un assistant de pizzeria. Réponds en français, sois précis et utile."

	multiCompanyInstructions = `INSTRUCTIONS:
- Nous sommes un groupe de pizzerias avec plusieurs restaurants
- Si la question est générale, présente les options de chaque restaurant séparément
- Si un restaurant spécifique est mentionné, concentre-toi sur celui-ci
- Sois précis sur quel restaurant offre quoi
- Format: "Chez [Nom Restaurant]: [info]" pour chaque restaurant
- PRIORITÉ ABSOLUE: TOUJOURS inclure les informations d'allergènes pour chaque pizza mentionnée
- Si des allergènes sont détectés, AVERTIS CLAIREMENT le client avec des emojis ⚠️
- Si le client mentionne des allergies spécifiques, VÉRIFIE LA COMPATIBILITÉ
- Suggère des alternatives sans allergènes si nécessaire
- Utilise le format: "⚠️ Allergènes: [liste]" ou "✅ Aucun allergène majeur détecté"
- Reste dans le rôle d'un assistant de groupe de pizzerias`

	singleCompanyInstructions = `INSTRUCTIONS:
- Réponds uniquement en français
- Base-toi uniquement sur les informations du contexte fourni
- Si l'information n'est pas dans le contexte, dis-le clairement
- PRIORITÉ ABSOLUE: TOUJOURS inclure les informations d'allergènes pour chaque pizza mentionnée
- Si des allergènes sont détectés, AVERTIS CLAIREMENT le client avec des emojis ⚠️
- Si le client mentionne des allergies spécifiques, VÉRIFIE LA COMPATIBILITÉ
- Utilise le format: "⚠️ Allergènes: [liste]" ou "✅ Aucun allergène majeur détecté"
- Suggère des alternatives sans allergènes si nécessaire
- Sois précis et utile
- Reste dans le rôle d'un assistant de pizzeria`

	noContextText = "Aucune information pertinente trouvée dans notre base de données."
)

// CreatePrompt 组装发给模型的提示词：分组上下文、每家公司的过敏原状态、
// 完整过敏原参考列表、用户过敏提醒，以及单/多公司两套指令。
func (s *RAGService) CreatePrompt(question string, ctxResult *model.ContextResult, info model.AllergenInfo, userAllergens []string) string {
	var b strings.Builder
	groups := nonEmptyGroups(ctxResult)

	if ctxResult.HasMultipleCompanies {
		b.WriteString("INFORMATIONS DE NOS DIFFÉRENTS SERVICES:\n\n")
		for _, g := range groups {
			fmt.Fprintf(&b, "🍕 %s:\n", strings.ToUpper(g.Company))
			for _, snippet := range g.Snippets {
				fmt.Fprintf(&b, "   %s\n", snippet)
			}
			if names := info[g.Company]; len(names) > 0 {
				fmt.Fprintf(&b, "   ⚠️ ALLERGÈNES DÉTECTÉS: %s\n", strings.Join(names, ", "))
			} else {
				b.WriteString("   ✅ AUCUN ALLERGÈNE MAJEUR DÉTECTÉ\n")
			}
			b.WriteString("\n")
		}
	} else {
		company := "Restaurant"
		if len(groups) > 0 {
			company = groups[0].Company
		}
		fmt.Fprintf(&b, "INFORMATIONS DE %s:\n\n", strings.ToUpper(company))
		for _, g := range groups {
			for _, snippet := range g.Snippets {
				fmt.Fprintf(&b, "%s\n\n", snippet)
			}
		}
		if names := info[company]; len(names) > 0 {
			fmt.Fprintf(&b, "⚠️ ALLERGÈNES DÉTECTÉS: %s\n\n", strings.Join(names, ", "))
		} else {
			b.WriteString("✅ AUCUN ALLERGÈNE MAJEUR DÉTECTÉ\n\n")
		}
	}

	fmt.Fprintf(&b, "\nLISTE COMPLÈTE DES ALLERGÈNES À SURVEILLER:\n%s\n\n", strings.Join(s.Analyzer.ReferenceList(), ", "))
	if len(userAllergens) > 0 {
		fmt.Fprintf(&b, "⚠️ ATTENTION: Le client a mentionné être allergique à: %s\n\n", strings.Join(userAllergens, ", "))
	}

	role, instructions := singleCompanyRole, singleCompanyInstructions
	if ctxResult.HasMultipleCompanies {
		role, instructions = multiCompanyRole, multiCompanyInstructions
	}
	return fmt.Sprintf("%s\n\n%s\n\nQUESTION DU CLIENT: %s\n\n%s\n\nRÉPONSE:", role, b.String(), question, instructions)
}

// FallbackAnswer 模型不可用时的离线回答，只包含已检索到的上下文。
func FallbackAnswer(question string, ctxResult *model.ContextResult) string {
	found := noContextText
	if ctxResult != nil && ctxResult.HasContext() {
		var b strings.Builder
		for _, g := range nonEmptyGroups(ctxResult) {
			fmt.Fprintf(&b, "🍕 %s:\n", g.Company)
			for _, snippet := range g.Snippets {
				fmt.Fprintf(&b, "   %s\n", snippet)
			}
		}
		found = strings.TrimRight(b.String(), "\n")
	}
	return fmt.Sprintf(`🍕 Assistant Pizzeria (Mode Hors Ligne)

Désolé, je ne peux pas accéder au modèle de langage actuellement.

Voici ce que j'ai trouvé dans nos documents pour "%s":

%s

Pour activer la fonctionnalité complète:
1. Lancez Ollama: ollama serve
2. Vérifiez que les modèles sont disponibles: ollama list`, question, found)
}

func nonEmptyGroups(ctxResult *model.ContextResult) []model.ContextGroup {
	if ctxResult == nil {
		return nil
	}
	out := make([]model.ContextGroup, 0, len(ctxResult.Groups))
	for _, g := range ctxResult.Groups {
		if len(g.Snippets) > 0 {
			out = append(out, g)
		}
	}
	return out
}
