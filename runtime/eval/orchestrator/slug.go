package orchestrator

import (
	"encoding/hex"
	"math/rand/v2"

	"github.com/google/uuid"
)

// Word lists for generated run ids. The resulting slug always matches
// ^[a-z]+-[a-z]+-[a-z]+$.
var (
	slugAdverbs = []string{
		"quick", "calm", "bold", "bright", "brisk", "clever", "daring",
		"eager", "fierce", "gentle", "happy", "keen", "lively", "merry",
		"nimble", "proud", "quiet", "rapid", "sharp", "steady", "swift",
		"vivid", "wise", "witty",
	}
	slugAdjectives = []string{
		"agile", "amber", "azure", "cobalt", "coral", "crimson", "emerald",
		"golden", "indigo", "ivory", "jade", "lunar", "mellow", "misty",
		"ochre", "polar", "royal", "rustic", "scarlet", "silver", "solar",
		"umber", "velvet", "violet",
	}
	slugAnimals = []string{
		"badger", "bison", "crane", "dingo", "falcon", "ferret", "gecko",
		"heron", "ibis", "jackal", "koala", "lemur", "lynx", "marmot",
		"meerkat", "ocelot", "otter", "panda", "puffin", "quokka", "raven",
		"stoat", "tapir", "wombat",
	}
)

// newRunID generates a human-readable three-word run slug such as
// "quick-agile-lynx".
func newRunID() string {
	return slugAdverbs[rand.IntN(len(slugAdverbs))] + "-" +
		slugAdjectives[rand.IntN(len(slugAdjectives))] + "-" +
		slugAnimals[rand.IntN(len(slugAnimals))]
}

// newTraceID generates a 16-byte hex trace id threading the target and
// evaluator spans of one cell.
func newTraceID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
