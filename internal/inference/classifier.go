package inference

// Transition is the outcome of feeding a probability to a Classifier
type Transition struct {
	From    bool
	To      bool
	Flipped bool
}

// Rose reports a flip to true
func (t Transition) Rose() bool {
	return t.Flipped && t.To
}

// Fell reports a flip to false
func (t Transition) Fell() bool {
	return t.Flipped && !t.To
}

// Classifier holds the boolean state of one signal instance. It starts false.
type Classifier struct {
	threshold float64
	state     bool
}

// NewClassifier creates a classifier that reports true once p >= threshold
func NewClassifier(threshold float64) *Classifier {
	return &Classifier{threshold: threshold}
}

// Update classifies p and reports whether the state changed
func (c *Classifier) Update(p float64) Transition {
	from := c.state
	c.state = p >= c.threshold
	return Transition{From: from, To: c.state, Flipped: from != c.state}
}

// State returns the current boolean state
func (c *Classifier) State() bool {
	return c.state
}

// Threshold returns the decision threshold
func (c *Classifier) Threshold() float64 {
	return c.threshold
}
