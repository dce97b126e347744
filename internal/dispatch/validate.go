package dispatch

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks a config before it is stored. Dispatch does not require a
// valid config; it reports problems as failed results instead.
func Validate(cfg *TriggerActionConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return describe(err)
	}
	return nil
}

func ValidateGroup(g *GroupTriggerConfig) error {
	if err := validate.Struct(g); err != nil {
		return describe(err)
	}
	if g.Overrides.Mode != nil {
		switch *g.Overrides.Mode {
		case ModeAISmart, ModeTemplateSend, ModeMultiRole, ModeRecordOnly, ModeNotifyHuman:
		default:
			return fmt.Errorf("overrides.mode: unknown mode %q", *g.Overrides.Mode)
		}
	}
	return nil
}

func describe(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid trigger config: %s", strings.Join(msgs, "; "))
}
