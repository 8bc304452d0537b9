package banner

import (
	"github.com/charmbracelet/lipgloss"

	"stageq/internal/tui/styles"
)

const ascii = `
   _____ __                        
  / ___// /_____ _____ ____  ____ _
  \__ \/ __/ __ '/ __ '/ _ \/ __ '/
 ___/ / /_/ /_/ / /_/ /  __/ /_/ / 
/____/\__/\__,_/\__, /\___/\__, /  
               /____/        /_/   `

// GetString returns the banner shown above help output.
func GetString() string {
	style := lipgloss.DefaultRenderer().NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	return "\n" + style.Render(ascii) + "\n"
}
