package schedule

// AccountWindows is the flat list of windows reported for one account.
type AccountWindows struct {
	Account string
	Windows []CutWindow
}

// Group is the set of windows sharing a cut date and an account.
type Group struct {
	CutDate string      `json:"cut_date"`
	Account string      `json:"account"`
	Windows []CutWindow `json:"windows"`
}

type groupKey struct {
	cutDate string
	account string
}

// GroupByDateAndAccount builds one group per distinct (cut date, account)
// pair. Groups are ordered by first appearance and windows keep their
// source order.
func GroupByDateAndAccount(accounts []AccountWindows) []Group {
	index := make(map[groupKey]int)
	groups := make([]Group, 0)

	for _, acc := range accounts {
		for _, w := range acc.Windows {
			if w.Account == "" {
				w.Account = acc.Account
			}
			key := groupKey{cutDate: w.CutDate, account: acc.Account}
			i, ok := index[key]
			if !ok {
				i = len(groups)
				index[key] = i
				groups = append(groups, Group{CutDate: w.CutDate, Account: acc.Account})
			}
			groups[i].Windows = append(groups[i].Windows, w)
		}
	}

	return groups
}

// FilterAccount keeps the groups that belong to account. An empty account
// keeps everything.
func FilterAccount(groups []Group, account string) []Group {
	if account == "" {
		return groups
	}
	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		if g.Account == account {
			out = append(out, g)
		}
	}
	return out
}

// Accounts returns the distinct accounts in first-appearance order.
func Accounts(accounts []AccountWindows) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		if seen[acc.Account] {
			continue
		}
		seen[acc.Account] = true
		out = append(out, acc.Account)
	}
	return out
}
