// Package prompt builds the grading instructions sent to the model.
//
// Inputs are embedded verbatim. No escaping is applied, so text inside a
// field that looks like an instruction reaches the model unchanged.
package prompt

import "strings"

const gradingRules = `📌 Betygsregler:
- A: Alla A-kriterier uppfyllda.
- B: Alla C-kriterier uppfyllda + vissa A-kriterier.
- C: Alla C-kriterier uppfyllda.
- D: Alla E-kriterier uppfyllda + vissa C-kriterier.
- E: Alla E-kriterier uppfyllda.
- F: Kraven för E är inte uppfyllda.`

const sessionRules = `📌 BEDÖMNINGSREGLER:
- A: Alla A-kriterier uppfyllda.
- B: Alla C-kriterier + några A-kriterier.
- C: Alla C-kriterier uppfyllda.
- D: Alla E-kriterier + några C-kriterier.
- E: Alla E-kriterier uppfyllda.
- F: Färre än E-kriterierna uppfyllda.`

// Grading is the prompt the proxy synthesizes when a caller posts the three
// raw fields instead of a message list.
func Grading(assignment, rubric, studentAnswer string) string {
	var b strings.Builder
	b.WriteString("🎓 Du är en erfaren och objektiv lärare som betygsätter provsvar enligt Skolverkets kriterier. ")
	b.WriteString("Du utgår från en uppgift, en betygsmatris och ett elevsvar.\n\n")
	b.WriteString(gradingRules)
	b.WriteString("\n\n📝 Uppgift:\n")
	b.WriteString(assignment)
	b.WriteString("\n\n📊 Betygsmatris:\n")
	b.WriteString(rubric)
	b.WriteString("\n\n✍️ Elevsvar:\n")
	b.WriteString(studentAnswer)
	b.WriteString("\n\n✅ Din bedömning ska innehålla:\n")
	b.WriteString("1. Det exakta betyget (A–F)\n")
	b.WriteString("2. Tydlig motivering med koppling till matrisens formuleringar\n")
	b.WriteString("3. En kort analys varför svaret inte når nästa nivå (om relevant)\n")
	return b.String()
}

// Initial is the first message of a browser grading session. It asks for a
// fixed "Betyg: X / Motivering: ..." reply layout.
func Initial(assignment, rubric, studentAnswer string) string {
	var b strings.Builder
	b.WriteString("🎓 Du är en expertlärare. Din uppgift är att analysera ett elevsvar baserat på en uppgift ")
	b.WriteString("och en betygsmatris och sätta ett objektivt betyg mellan A och F.\n\n")
	b.WriteString(sessionRules)
	b.WriteString("\n\n❌ Du får aldrig utgå från ett specifikt betyg. Börja från noll.\n")
	b.WriteString("✅ Du måste sätta ett tydligt betyg (A–F) med motivering baserat på matrisen.\n\n---\n\n")
	b.WriteString("📝 Själva uppgiften:\n")
	b.WriteString(assignment)
	b.WriteString("\n\n📊 Betygsmatris:\n")
	b.WriteString(rubric)
	b.WriteString("\n\n✍️ Elevens svar:\n")
	b.WriteString(studentAnswer)
	b.WriteString("\n\n---\n\nSvara med:\nBetyg: X\nMotivering: ...\n")
	return b.String()
}
