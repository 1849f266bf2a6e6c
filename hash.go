package redisc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomodule/redigo/redis"
)

// HashSlots is the number of hash slots in a redis cluster.
const HashSlots = 16384

// Slot returns the hash slot for the key. If the key contains a non-empty
// hash tag (the part between the first "{" and the following "}"), only
// the hash tag is hashed.
func Slot(key string) int {
	if start := strings.Index(key, "{"); start >= 0 {
		if end := strings.Index(key[start+1:], "}"); end > 0 { // if end == 0, then it's {}, so we ignore it
			end += start + 1
			key = key[start+1 : end]
		}
	}
	return int(crc16(key) % HashSlots)
}

// slotForArgs returns the slot of the routing key of a command, which is
// assumed to be its first argument, or -1 if the command has no argument.
func slotForArgs(args []interface{}) int {
	if len(args) == 0 {
		return -1
	}
	return Slot(keyString(args[0]))
}

// keyString returns the key as redigo writes it on the wire.
func keyString(arg interface{}) string {
	switch arg := arg.(type) {
	case string:
		return arg
	case []byte:
		return string(arg)
	case int:
		return strconv.Itoa(arg)
	case int64:
		return strconv.FormatInt(arg, 10)
	case float64:
		return strconv.FormatFloat(arg, 'g', -1, 64)
	case bool:
		if arg {
			return "1"
		}
		return "0"
	case nil:
		return ""
	case redis.Argument:
		return keyString(arg.RedisArg())
	default:
		return fmt.Sprint(arg)
	}
}
