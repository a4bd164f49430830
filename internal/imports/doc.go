// Package imports resolves class names against a unit's import table.
//
// Bind turns source names into canonical ClassRef nodes, recording how each
// reference was written. Render is the inverse: it restores the written
// form of untouched references and, for references introduced by a rewrite,
// chooses between an imported simple name, a fully qualified name and a
// statically imported member according to the rule's import policy.
package imports
