package internal

import (
	"fmt"
	"time"
)

type Config struct {
	BadgerFilepath     string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath      string        `env:"BLUGE_FILEPATH,required=true"`
	LogLevel           string        `env:"LOG_LEVEL,required=true"`
	CharReplacement    string        `env:"CHARACTER_REPLACEMENT,required=true"`
	SinkTimeout        time.Duration `env:"SINK_TIMEOUT,required=true"`
	SearchPageSize     int           `env:"SEARCH_PAGE_SIZE,required=true"`
	LimitConversations *int          `env:"LIMIT_CONVERSATIONS"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
