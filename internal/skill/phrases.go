package skill

import (
	"fmt"
	"strings"
	"time"
)

var confirmations = []string{
	"Done!",
	"Perfect!",
	"Great!",
	"All set!",
	"Got it!",
}

var anythingElse = []string{
	"Anything else I can help with?",
	"What else would you like to do?",
	"Is there anything else?",
}

var whatToDo = []string{
	"What would you like to do?",
	"You can add, loan, return or search for a book. What would you like?",
	"How can I help with your library?",
}

var goodbyes = []string{
	"Goodbye! Happy reading.",
	"See you soon. Enjoy your books!",
	"Bye! Come back any time.",
}

// dueDateLayout は期限日の読み上げ形式。
const dueDateLayout = "January 2"

// joinTitles は "'A', 'B' and 'C'" 形式で書名を連結する。
func joinTitles(titles []string) string {
	quoted := make([]string, len(titles))
	for i, t := range titles {
		quoted[i] = "'" + t + "'"
	}
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return quoted[0]
	default:
		return strings.Join(quoted[:len(quoted)-1], ", ") + " and " + quoted[len(quoted)-1]
	}
}

// plural は件数に応じて単数形・複数形を選ぶ。
func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, pluralForm)
}

func formatDue(t time.Time) string {
	return t.Format(dueDateLayout)
}
