/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package settings

import (
	"strings"

	"github.com/google/uuid"
)

// deriveComponentID implements the three-rule identity derivation: explicit
// id wins, then identity by (type, name), then identity by (type, manager
// address, engine address).
func deriveComponentID(explicit, componentType, componentName, managerAddr, engineAddr string) string {
	if explicit != "" {
		return explicit
	}

	var input string
	if componentName != "" {
		input = "detectmate/" + componentType + "/" + componentName
	} else {
		input = "detectmate/" + componentType + "|" + managerAddr + "|" + engineAddr
	}

	u := uuid.NewSHA1(uuid.NameSpaceURL, []byte(input))
	return strings.ReplaceAll(u.String(), "-", "")
}
