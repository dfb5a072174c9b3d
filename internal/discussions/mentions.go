package discussions

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// ParseMentions extracts @-mention tokens from message text, lowercased and
// deduplicated in order of first appearance
func ParseMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		token := strings.ToLower(m[1])
		if !seen[token] {
			seen[token] = true
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// FindUsersByMention resolves a single mention token to user IDs. The store
// may narrow candidates by substring, but inclusion requires an exact
// case-insensitive match on first name or username. The current user is
// never a candidate.
func (s *Service) FindUsersByMention(token string, currentUserID uuid.UUID) ([]uuid.UUID, error) {
	candidates, err := s.store.SearchUsersByMentionToken(token)
	if err != nil {
		log.Error().Err(err).Str("token", token).Msg("Failed to search users for mention")
		return nil, err
	}

	var ids []uuid.UUID
	for _, u := range candidates {
		if u.ID == currentUserID || !u.IsActive {
			continue
		}
		if strings.EqualFold(u.FirstName, token) || strings.EqualFold(u.Username, token) {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

// FindMentionedUsers resolves every mention in the text to a deduplicated
// set of user IDs
func (s *Service) FindMentionedUsers(text string, currentUserID uuid.UUID) ([]uuid.UUID, error) {
	tokens := ParseMentions(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, token := range tokens {
		resolved, err := s.FindUsersByMention(token, currentUserID)
		if err != nil {
			return nil, err
		}
		for _, id := range resolved {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}
