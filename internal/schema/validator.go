package schema

import (
	"fmt"

	"go.uber.org/multierr"
)

// Validate checks the schema for definitions the object store cannot
// honour, returning every problem found combined into one error.
func (s *Schema) Validate() error {
	var errs error

	for _, ot := range s.ObjectTypes() {
		if ot.Label != "" {
			label := ot.LabelField()
			if label == nil || label.Kind != KindString || label.Vector {
				errs = multierr.Append(errs, inconsistent(ot, nil, "label must name a scalar string field"))
			}
		}

		for _, fd := range ot.Fields() {
			errs = multierr.Append(errs, s.validateField(ot, fd))
		}
	}

	return errs
}

func (s *Schema) validateField(ot *ObjectType, fd *FieldDef) error {
	var errs error

	if fd.Kind < KindBoolean || fd.Kind > KindFieldOptions {
		errs = multierr.Append(errs, inconsistent(ot, fd, "unknown kind"))
	}

	if fd.Vector && !fd.Kind.CanBeVector() {
		errs = multierr.Append(errs, inconsistent(ot, fd, fmt.Sprintf("%s fields cannot be vectors", fd.Kind)))
	}
	if fd.MaxSize < 0 || (fd.MaxSize > 0 && !fd.Vector) {
		errs = multierr.Append(errs, inconsistent(ot, fd, "maxSize applies to vector fields only"))
	}

	if fd.Namespace != "" {
		if !fd.Kind.CanUseNamespace() {
			errs = multierr.Append(errs, inconsistent(ot, fd, fmt.Sprintf("%s fields cannot use a namespace", fd.Kind)))
		}
		if s.Namespaces[fd.Namespace] == nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s.%s uses %q", ErrUnknownNamespace, ot.Name, fd.Name, fd.Namespace))
		}
	}

	switch fd.Kind {
	case KindString:
		if fd.Syntax != "" && s.Syntaxes[fd.Syntax] == nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s.%s uses %q", ErrUnknownSyntax, ot.Name, fd.Name, fd.Syntax))
		}
		if fd.MaxLength > 0 && fd.MinLength > fd.MaxLength {
			errs = multierr.Append(errs, inconsistent(ot, fd, "minLength exceeds maxLength"))
		}
	case KindNumeric:
		if fd.Min != nil && fd.Max != nil && *fd.Min > *fd.Max {
			errs = multierr.Append(errs, inconsistent(ot, fd, "min exceeds max"))
		}
	case KindFloat:
		if fd.FloatMin != nil && fd.FloatMax != nil && *fd.FloatMin > *fd.FloatMax {
			errs = multierr.Append(errs, inconsistent(ot, fd, "min exceeds max"))
		}
	case KindInvid:
		errs = multierr.Append(errs, s.validateInvid(ot, fd))
	case KindPassword:
		if fd.Password == nil || (len(fd.Password.Formats) == 0 && !fd.Password.StorePlaintext) {
			errs = multierr.Append(errs, inconsistent(ot, fd, "password field stores neither hashes nor plaintext"))
		}
	}

	return errs
}

func (s *Schema) validateInvid(ot *ObjectType, fd *FieldDef) error {
	if fd.Code == ContainerField {
		return nil
	}

	var target *ObjectType
	if fd.TargetType != 0 {
		target = s.types[fd.TargetType]
		if target == nil {
			return fmt.Errorf("%w: %s.%s targets type %d", ErrUnknownType, ot.Name, fd.Name, fd.TargetType)
		}
	}

	if fd.EditInPlace {
		if fd.Symmetric {
			return inconsistent(ot, fd, "edit-in-place fields cannot have a mirror")
		}
		if target == nil || !target.Embedded {
			return inconsistent(ot, fd, "edit-in-place fields must target an embedded type")
		}
		return nil
	}

	if target != nil && target.Embedded {
		return inconsistent(ot, fd, "only edit-in-place fields may target an embedded type")
	}

	if !fd.Symmetric {
		return nil
	}

	if target == nil {
		return inconsistent(ot, fd, "symmetric fields need a target type")
	}

	mirror := target.Field(fd.Mirror)
	switch {
	case mirror == nil:
		return inconsistent(ot, fd, fmt.Sprintf("mirror field %d missing on %s", fd.Mirror, target.Name))
	case mirror.Kind != KindInvid:
		return inconsistent(ot, fd, fmt.Sprintf("mirror %s.%s is not a reference field", target.Name, mirror.Name))
	case !mirror.Symmetric || mirror.Mirror != fd.Code:
		return inconsistent(ot, fd, fmt.Sprintf("mirror %s.%s does not point back", target.Name, mirror.Name))
	case mirror.TargetType != 0 && mirror.TargetType != ot.ID:
		return inconsistent(ot, fd, fmt.Sprintf("mirror %s.%s targets another type", target.Name, mirror.Name))
	}

	return nil
}

func inconsistent(ot *ObjectType, fd *FieldDef, msg string) error {
	if fd == nil {
		return fmt.Errorf("%w: %s: %s", ErrInconsistent, ot.Name, msg)
	}
	return fmt.Errorf("%w: %s.%s: %s", ErrInconsistent, ot.Name, fd.Name, msg)
}
