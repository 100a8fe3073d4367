package environment

// seed is the fixed starting state of every reset.
const seed = 1

// lcg is a 64-bit linear congruential generator. One state is threaded
// through every buffer a reset fills.
type lcg struct {
	state uint64
}

func newLCG() *lcg {
	return &lcg{state: seed}
}

func (r *lcg) next() uint64 {
	r.state = r.state*6364136223846793005 + 1442695040888963407
	return r.state
}
