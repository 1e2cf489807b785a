package studio

// EditSession is the undo/redo stack of one interactive edit session.
// It lives in memory only.
//
// The stack holds every image of the session in order; the cursor points at
// the current one. Applying an edit after an undo discards the images past
// the cursor.
type EditSession struct {
	stack  []Image
	cursor int
}

// NewEditSession creates an empty session.
func NewEditSession() *EditSession {
	return &EditSession{cursor: -1}
}

// Start resets the session to a single image.
func (s *EditSession) Start(img Image) {
	s.stack = []Image{img}
	s.cursor = 0
}

// Apply records img as the result of an edit of the current image.
func (s *EditSession) Apply(img Image) {
	s.stack = append(s.stack[:s.cursor+1], img)
	s.cursor = len(s.stack) - 1
}

// Undo moves back one step. It reports false when there is nothing to undo.
func (s *EditSession) Undo() bool {
	if !s.CanUndo() {
		return false
	}
	s.cursor--
	return true
}

// Redo moves forward one step. It reports false when there is nothing to redo.
func (s *EditSession) Redo() bool {
	if !s.CanRedo() {
		return false
	}
	s.cursor++
	return true
}

// Current returns the image at the cursor, or false for an empty session.
func (s *EditSession) Current() (Image, bool) {
	if s.cursor < 0 {
		return Image{}, false
	}
	return s.stack[s.cursor], true
}

func (s *EditSession) CanUndo() bool { return s.cursor > 0 }

func (s *EditSession) CanRedo() bool { return s.cursor >= 0 && s.cursor < len(s.stack)-1 }

// Len returns the number of images on the stack.
func (s *EditSession) Len() int { return len(s.stack) }

// Cursor returns the index of the current image, -1 for an empty session.
func (s *EditSession) Cursor() int { return s.cursor }

// Reset empties the session.
func (s *EditSession) Reset() {
	s.stack = nil
	s.cursor = -1
}
