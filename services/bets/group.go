package bets

import (
	"fmt"
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ComposeGroup assembles a group bet. The creator is added as the first member and must not
// be listed again among participants. Emails are compared case-insensitively and at least two
// distinct members are required once the creator is included.
func ComposeGroup(name string, participants []Participant, creator Participant) (GroupSpec, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return GroupSpec{}, ErrEmptyName
	}

	owner, err := normalizeParticipant(creator)
	if err != nil {
		return GroupSpec{}, fmt.Errorf("creator: %w", err)
	}

	members := []Participant{owner}
	seen := map[string]struct{}{strings.ToLower(owner.Email): {}}
	for i, p := range participants {
		member, err := normalizeParticipant(p)
		if err != nil {
			return GroupSpec{}, fmt.Errorf("participant %d: %w", i+1, err)
		}
		key := strings.ToLower(member.Email)
		if _, dup := seen[key]; dup {
			return GroupSpec{}, fmt.Errorf("%w: %s", ErrDuplicateParticipant, member.Email)
		}
		seen[key] = struct{}{}
		members = append(members, member)
	}

	if len(members) < 2 {
		return GroupSpec{}, fmt.Errorf("%w: %d member(s), need at least 2", ErrInsufficientParticipants, len(members))
	}

	return GroupSpec{Name: name, Creator: owner, Participants: members}, nil
}

func normalizeParticipant(p Participant) (Participant, error) {
	email := strings.TrimSpace(p.Email)
	if !emailPattern.MatchString(email) {
		return Participant{}, fmt.Errorf("%w: %q", ErrInvalidEmail, p.Email)
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}
	return Participant{Name: name, Email: email}, nil
}
