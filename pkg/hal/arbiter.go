package hal

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/alphabot-community/alphabot-agent/pkg/hal/bcm2837"
)

// ResourceClass is a family of hardware channels that pins can be routed to.
type ResourceClass int

const (
	ClassPWM ResourceClass = iota + 1
	ClassI2C
	ClassClock
)

func (c ResourceClass) String() string {
	switch c {
	case ClassPWM:
		return "pwm"
	case ClassI2C:
		return "i2c"
	case ClassClock:
		return "clock"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// ChannelID identifies a hardware channel within a resource class.
type ChannelID int

// Route is how a pin reaches a channel: the channel and the pin function that connects them.
type Route struct {
	Channel  ChannelID
	Function bcm2837.Function
}

// routes is keyed by pin. I2C routes are keyed by the SDA pin.
var routes = map[ResourceClass]map[int]Route{
	ClassPWM: {
		12: {1, bcm2837.FuncAlt0},
		18: {1, bcm2837.FuncAlt5},
		40: {1, bcm2837.FuncAlt0},
		52: {1, bcm2837.FuncAlt1},
		13: {2, bcm2837.FuncAlt0},
		19: {2, bcm2837.FuncAlt5},
		41: {2, bcm2837.FuncAlt0},
		45: {2, bcm2837.FuncAlt0},
		53: {2, bcm2837.FuncAlt1},
	},
	ClassI2C: {
		0:  {0, bcm2837.FuncAlt0},
		28: {0, bcm2837.FuncAlt0},
		2:  {1, bcm2837.FuncAlt0},
		44: {1, bcm2837.FuncAlt2},
	},
	ClassClock: {
		4:  {0, bcm2837.FuncAlt0},
		20: {0, bcm2837.FuncAlt5},
		32: {0, bcm2837.FuncAlt0},
		34: {0, bcm2837.FuncAlt0},
		5:  {1, bcm2837.FuncAlt0},
		21: {1, bcm2837.FuncAlt5},
		42: {1, bcm2837.FuncAlt0},
		44: {1, bcm2837.FuncAlt0},
		6:  {2, bcm2837.FuncAlt0},
		43: {2, bcm2837.FuncAlt0},
	},
}

// LookupRoute returns the channel pin is wired to in class.
func LookupRoute(class ResourceClass, pin int) (Route, bool) {
	r, ok := routes[class][pin]
	return r, ok
}

// RoutedPins lists the pins that can reach a channel of class, ascending.
func RoutedPins(class ResourceClass) []int {
	pins := make([]int, 0, len(routes[class]))
	for pin := range routes[class] {
		pins = append(pins, pin)
	}
	sort.Ints(pins)
	return pins
}

// ChannelClaim records which pin holds a channel.
type ChannelClaim struct {
	Class   ResourceClass
	Channel ChannelID
	Pin     int
}

type claimKey struct {
	class   ResourceClass
	channel ChannelID
}

// claim is an active channel claim. holders counts the peripherals that
// claimed the channel through the same pin.
type claim struct {
	pin     int
	holders int
}

// Arbiter enforces single ownership of hardware channels.
type Arbiter struct {
	mu     sync.Mutex
	claims map[claimKey]claim
}

func NewArbiter() *Arbiter {
	return &Arbiter{claims: make(map[claimKey]claim)}
}

// Claim assigns the channel pin is routed to in class. Claiming a channel
// already held by pin succeeds again and adds a holder; a channel held by
// another pin fails and the existing claim stays in place.
func (a *Arbiter) Claim(class ResourceClass, pin int) (ChannelID, error) {
	route, ok := LookupRoute(class, pin)
	if !ok {
		return 0, NewError(KindInvalidPin, fmt.Sprintf("pin %d is not wired to any %s channel", pin, class),
			fmt.Sprintf("use one of the %s pins %v", class, RoutedPins(class)),
		)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := claimKey{class, route.Channel}
	current, held := a.claims[key]
	if held && current.pin != pin {
		return 0, NewError(KindChannelOccupied,
			fmt.Sprintf("%s channel %d is already claimed by pin %d", class, route.Channel, current.pin),
			fmt.Sprintf("release the peripheral on pin %d first, or use a pin routed to another channel", current.pin),
		)
	}

	a.claims[key] = claim{pin: pin, holders: current.holders + 1}
	channelClaims.WithLabelValues(class.String(), strconv.Itoa(int(route.Channel))).Set(1)
	return route.Channel, nil
}

// Release drops one holder of channel. The channel is freed once its last
// holder releases it, and Release reports whether that happened. Releasing
// an unclaimed channel is a no-op and reports false.
func (a *Arbiter) Release(class ResourceClass, channel ChannelID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := claimKey{class, channel}
	current, held := a.claims[key]
	if !held {
		return false
	}
	if current.holders > 1 {
		current.holders--
		a.claims[key] = current
		return false
	}

	delete(a.claims, key)
	channelClaims.WithLabelValues(class.String(), strconv.Itoa(int(channel))).Set(0)
	return true
}

// Owner returns the pin holding channel.
func (a *Arbiter) Owner(class ResourceClass, channel ChannelID) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	current, ok := a.claims[claimKey{class, channel}]
	return current.pin, ok
}

// Holders returns how many peripherals hold channel.
func (a *Arbiter) Holders(class ResourceClass, channel ChannelID) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.claims[claimKey{class, channel}].holders
}

// Claims returns a snapshot of all active claims ordered by class and channel.
func (a *Arbiter) Claims() []ChannelClaim {
	a.mu.Lock()
	defer a.mu.Unlock()

	claims := make([]ChannelClaim, 0, len(a.claims))
	for key, current := range a.claims {
		claims = append(claims, ChannelClaim{Class: key.class, Channel: key.channel, Pin: current.pin})
	}
	sort.Slice(claims, func(i, j int) bool {
		if claims[i].Class != claims[j].Class {
			return claims[i].Class < claims[j].Class
		}
		return claims[i].Channel < claims[j].Channel
	})
	return claims
}
