package goodsparser

import "strings"

// CleanStep is a single text transformation applied by the model name cleaner
type CleanStep func(string) string

// nameSteps returns the cleaner's steps in the order they must run
func (l *Library) nameSteps() []CleanStep {
	return []CleanStep{
		l.truncateAtQuantityBlock,
		l.removeBracketGroups,
		l.stripLeadingToken,
		l.collapseWhitespace,
	}
}

// CleanModelName strips quantity blocks, brackets and the leading model token.
// When nothing is left the original text is returned.
func (l *Library) CleanModelName(text string) string {
	name := text
	for _, step := range l.nameSteps() {
		name = step(name)
	}
	if name == "" {
		return text
	}
	return name
}

// truncateAtQuantityBlock drops everything from "(QTY:" or "(QTY " onward
func (l *Library) truncateAtQuantityBlock(text string) string {
	if loc := l.nameTruncate.FindStringIndex(text); loc != nil {
		return text[:loc[0]]
	}
	return text
}

func (l *Library) removeBracketGroups(text string) string {
	return l.bracketGroup.ReplaceAllString(text, "")
}

// stripLeadingToken only fires when the token is followed by whitespace
func (l *Library) stripLeadingToken(text string) string {
	if loc := l.nameLeadToken.FindStringIndex(text); loc != nil {
		return text[loc[1]:]
	}
	return text
}

func (l *Library) collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
