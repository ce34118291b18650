package catalog

// sessions covers the 1st through 25th Congresses. Dates are the first and
// last day of each session's run.
var sessions = []Row{
	{ID: "001", Ordinal: "1st", DateRange: "March 4, 1789 to March 3, 1791"},
	{ID: "002", Ordinal: "2nd", DateRange: "March 4, 1791 to March 2, 1793"},
	{ID: "003", Ordinal: "3rd", DateRange: "March 4, 1793 to March 3, 1795"},
	{ID: "004", Ordinal: "4th", DateRange: "June 8, 1795 to March 3, 1797"},
	{ID: "005", Ordinal: "5th", DateRange: "March 4, 1797 to March 3, 1799"},
	{ID: "006", Ordinal: "6th", DateRange: "December 2, 1799 to March 3, 1801"},
	{ID: "007", Ordinal: "7th", DateRange: "March 4, 1801 to March 3, 1803"},
	{ID: "008", Ordinal: "8th", DateRange: "October 17, 1803 to March 3, 1805"},
	{ID: "009", Ordinal: "9th", DateRange: "December 2, 1805 to March 3, 1807"},
	{ID: "010", Ordinal: "10th", DateRange: "October 26, 1807 to March 3, 1809"},
	{ID: "011", Ordinal: "11th", DateRange: "March 4, 1809 to March 3, 1811"},
	{ID: "012", Ordinal: "12th", DateRange: "November 4, 1811 to March 3, 1813"},
	{ID: "013", Ordinal: "13th", DateRange: "May 24, 1813 to March 3, 1815"},
	{ID: "014", Ordinal: "14th", DateRange: "December 4, 1815 to March 3, 1817"},
	{ID: "015", Ordinal: "15th", DateRange: "March 4, 1817 to March 3, 1819"},
	{ID: "016", Ordinal: "16th", DateRange: "December 6, 1819 to March 3, 1821"},
	{ID: "017", Ordinal: "17th", DateRange: "December 3, 1821 to March 3, 1823"},
	{ID: "018", Ordinal: "18th", DateRange: "December 1, 1823 to March 3, 1825"},
	{ID: "019", Ordinal: "19th", DateRange: "March 4, 1825 to March 3, 1827"},
	{ID: "020", Ordinal: "20th", DateRange: "December 3, 1827 to March 3, 1829"},
	{ID: "021", Ordinal: "21st", DateRange: "March 4, 1829 to March 3, 1831"},
	{ID: "022", Ordinal: "22nd", DateRange: "December 5, 1831 to March 2, 1833"},
	{ID: "023", Ordinal: "23rd", DateRange: "December 2, 1833 to March 3, 1835"},
	{ID: "024", Ordinal: "24th", DateRange: "December 7, 1835 to March 3, 1837"},
	{ID: "025", Ordinal: "25th", DateRange: "March 4, 1837 to March 3, 1839"},
}

// Rows returns a copy of the built-in session table.
func Rows() []Row {
	out := make([]Row, len(sessions))
	copy(out, sessions)
	return out
}

// Default builds the catalog from the built-in session table.
func Default() (*Catalog, error) { return New(sessions) }
