package main

import (
	"fmt"
	"os"
)

const usage = `usage: admin <command> [flags]

commands:
  players         list connected players
  state           show a player's live map state
  fov             set a player's FOV window
  version         set a player's live map version
  reset           force a full window push on the player's next move
  land            replace one land block on the running server
  statics         replace one block's statics on the running server
  import          load a raw land file into the map store
  import-statics  load a statics index and data file into the map store
  maps            count stored land and statics blocks per map
  crossings       print recorded block crossings`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	args := os.Args[2:]
	switch os.Args[1] {
	case "players":
		playersCmd(args)
	case "state":
		stateCmd(args)
	case "fov":
		fovCmd(args)
	case "version":
		versionCmd(args)
	case "reset":
		resetCmd(args)
	case "land":
		landCmd(args)
	case "statics":
		staticsCmd(args)
	case "import":
		importCmd(args)
	case "import-statics":
		importStaticsCmd(args)
	case "maps":
		mapsCmd(args)
	case "crossings":
		crossingsCmd(args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}
