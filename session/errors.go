package session

import (
	"errors"
	"fmt"

	"github.com/hupe1980/collabmesh/core"
)

var (
	ErrBlockNotFound    = fmt.Errorf("block %w", core.ErrNotFound)
	ErrStrokeNotFound   = fmt.Errorf("stroke %w", core.ErrNotFound)
	ErrCommentNotFound  = fmt.Errorf("comment %w", core.ErrNotFound)
	ErrConflictNotFound = fmt.Errorf("conflict %w", core.ErrNotFound)

	// ErrMergeContentRequired is returned when a merge resolution carries no
	// content. The conflict stays pending.
	ErrMergeContentRequired = errors.New("merge resolution requires merged content")
	// ErrUnknownPolicy is returned for a resolution policy other than local, remote or merge.
	ErrUnknownPolicy = errors.New("unknown resolution policy")
	// ErrDuplicateID is returned when inserting an entity whose id already exists.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrEmptyStroke is returned when a stroke is created without a starting point.
	ErrEmptyStroke = errors.New("stroke needs a starting point")
	// ErrInvalidBlockType is returned for an unknown block type.
	ErrInvalidBlockType = errors.New("invalid block type")
	// ErrInvalidTool is returned for a stroke tool other than pen or eraser.
	ErrInvalidTool = errors.New("invalid stroke tool")
	// ErrMissingID is returned when an inserted block carries no id.
	ErrMissingID = errors.New("missing id")
)
