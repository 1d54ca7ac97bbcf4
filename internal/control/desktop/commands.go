package desktop

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// toolset maps the control surface operations onto platform command lines.
// Keeping this a data table (rather than branching inside each method) keeps
// the per-OS differences in one reviewable place.
type toolset struct {
	move     func(x, y int) []string
	click    func(button schemas.MouseButton) []string
	typeText func(text string) []string
	hotkey   func(keys []string) []string
	// capture renders the capture command writing a PNG to path.
	capture func(path string) []string
	// openApp resolves an application name to a launch command.
	openApp func(name string) ([]string, bool)
}

// xdotoolButton maps a mouse button to xdotool's numeric button argument.
func xdotoolButton(b schemas.MouseButton) string {
	switch b {
	case schemas.ButtonRight:
		return "3"
	case schemas.ButtonMiddle:
		return "2"
	default:
		return "1"
	}
}

// appAliases maps friendly application names to per-platform launch targets.
// Names not present fall back to a PATH lookup on linux; on darwin the name
// must resolve to an installed bundle or a PATH binary before it is handed to
// `open -a`, because `open` reports resolution failures only after launch.
var appAliases = map[string]map[string]string{
	"linux": {
		"terminal": "x-terminal-emulator",
		"files":    "nautilus",
		"browser":  "xdg-open",
	},
	"windows": {
		"notepad":    "notepad.exe",
		"calculator": "calc.exe",
		"explorer":   "explorer.exe",
		"paint":      "mspaint.exe",
		"cmd":        "cmd.exe",
	},
}

func platformToolset() toolset {
	switch runtime.GOOS {
	case "darwin":
		return darwinToolset()
	case "windows":
		return windowsToolset()
	default:
		return linuxToolset()
	}
}

func linuxToolset() toolset {
	return toolset{
		move: func(x, y int) []string {
			return []string{"xdotool", "mousemove", strconv.Itoa(x), strconv.Itoa(y)}
		},
		click: func(button schemas.MouseButton) []string {
			return []string{"xdotool", "click", xdotoolButton(button)}
		},
		typeText: func(text string) []string {
			return []string{"xdotool", "type", "--delay", "12", "--", text}
		},
		hotkey: func(keys []string) []string {
			return []string{"xdotool", "key", strings.Join(keys, "+")}
		},
		capture: func(path string) []string {
			return []string{"scrot", "--overwrite", path}
		},
		openApp: func(name string) ([]string, bool) {
			target := name
			if alias, ok := appAliases["linux"][strings.ToLower(name)]; ok {
				target = alias
			}
			if _, err := exec.LookPath(target); err != nil {
				return nil, false
			}
			return []string{target}, true
		},
	}
}

func darwinToolset() toolset {
	return toolset{
		move: func(x, y int) []string {
			return []string{"cliclick", fmt.Sprintf("m:%d,%d", x, y)}
		},
		click: func(button schemas.MouseButton) []string {
			switch button {
			case schemas.ButtonRight:
				return []string{"cliclick", "rc:."}
			default:
				return []string{"cliclick", "c:."}
			}
		},
		typeText: func(text string) []string {
			return []string{"cliclick", "t:" + text}
		},
		hotkey: func(keys []string) []string {
			// cliclick key-press handles modifier sequences as kd/ku pairs;
			// for the common combinations a single kp suffices.
			return []string{"cliclick", "kp:" + strings.Join(keys, ",")}
		},
		capture: func(path string) []string {
			return []string{"screencapture", "-x", path}
		},
		openApp: func(name string) ([]string, bool) {
			if !macAppInstalled(name) {
				return nil, false
			}
			return []string{"open", "-a", name}, true
		},
	}
}

// macAppDirs lists the bundle locations checked before an `open -a` launch.
var macAppDirs = []string{"/Applications", "/System/Applications", "/System/Applications/Utilities"}

func macAppInstalled(name string) bool {
	if _, err := exec.LookPath(name); err == nil {
		return true
	}
	bundle := strings.TrimSuffix(name, ".app") + ".app"
	dirs := macAppDirs
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, "Applications"))
	}
	for _, dir := range dirs {
		if _, err := os.Stat(filepath.Join(dir, bundle)); err == nil {
			return true
		}
	}
	return false
}

func windowsToolset() toolset {
	ps := func(script string) []string {
		return []string{"powershell", "-NoProfile", "-Command", script}
	}
	return toolset{
		move: func(x, y int) []string {
			return ps(fmt.Sprintf(
				"Add-Type -AssemblyName System.Windows.Forms; [System.Windows.Forms.Cursor]::Position = New-Object System.Drawing.Point(%d,%d)", x, y))
		},
		click: func(button schemas.MouseButton) []string {
			// SendInput via the user32 shim; left unless asked otherwise.
			flagDown, flagUp := "0x0002", "0x0004"
			if button == schemas.ButtonRight {
				flagDown, flagUp = "0x0008", "0x0010"
			}
			return ps(fmt.Sprintf(
				"$s='[DllImport(\"user32.dll\")]public static extern void mouse_event(int f,int x,int y,int d,int e);';"+
					"$t=Add-Type -MemberDefinition $s -Name M -PassThru; $t::mouse_event(%s,0,0,0,0); $t::mouse_event(%s,0,0,0,0)",
				flagDown, flagUp))
		},
		typeText: func(text string) []string {
			escaped := strings.ReplaceAll(text, "'", "''")
			return ps(fmt.Sprintf(
				"Add-Type -AssemblyName System.Windows.Forms; [System.Windows.Forms.SendKeys]::SendWait('%s')", escaped))
		},
		hotkey: func(keys []string) []string {
			return ps(fmt.Sprintf(
				"Add-Type -AssemblyName System.Windows.Forms; [System.Windows.Forms.SendKeys]::SendWait('%s')", sendKeysChord(keys)))
		},
		capture: func(path string) []string {
			escaped := strings.ReplaceAll(path, "'", "''")
			return ps("Add-Type -AssemblyName System.Drawing,System.Windows.Forms;" +
				"$b=[System.Windows.Forms.Screen]::PrimaryScreen.Bounds;" +
				"$img=New-Object System.Drawing.Bitmap($b.Width,$b.Height);" +
				"$g=[System.Drawing.Graphics]::FromImage($img);$g.CopyFromScreen($b.Location,[System.Drawing.Point]::Empty,$b.Size);" +
				fmt.Sprintf("$img.Save('%s')", escaped))
		},
		openApp: func(name string) ([]string, bool) {
			target := name
			if alias, ok := appAliases["windows"][strings.ToLower(name)]; ok {
				target = alias
			}
			return []string{"cmd", "/c", "start", "", target}, true
		},
	}
}

// sendKeysChord renders an ordered key sequence in SendKeys syntax. Modifiers
// prefix the key that follows them (ctrl+shift+s -> ^+s); every non-modifier
// key is emitted in order, so ctrl+k+c renders as ^kc rather than dropping
// part of the chord.
func sendKeysChord(keys []string) string {
	var out strings.Builder
	for _, k := range keys {
		switch strings.ToLower(k) {
		case "ctrl", "control":
			out.WriteString("^")
		case "alt":
			out.WriteString("%")
		case "shift":
			out.WriteString("+")
		case "enter", "return":
			out.WriteString("{ENTER}")
		case "tab":
			out.WriteString("{TAB}")
		case "esc", "escape":
			out.WriteString("{ESC}")
		case "delete", "del":
			out.WriteString("{DEL}")
		case "backspace":
			out.WriteString("{BACKSPACE}")
		default:
			out.WriteString(strings.ToLower(k))
		}
	}
	return out.String()
}
